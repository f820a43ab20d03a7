package appstoreconnect

import (
	"compress/gzip"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
)

const (
	apiBaseURL    = "https://api.appstoreconnect.apple.com"
	tokenAudience = "appstoreconnect-v1"
	tokenLifetime = 15 * time.Minute

	// Report identifiers accepted by the salesReports endpoint.
	ReportTypeSubscription      = "SUBSCRIPTION"
	ReportTypeSubscriptionEvent = "SUBSCRIPTION_EVENT"
	ReportTypeSubscriber        = "SUBSCRIBER"
)

// Client downloads daily sales reports from the App Store Connect API.
// Each request carries a short-lived ES256 token minted from the
// connection's API key, so one client maps to one connection.
type Client struct {
	httpClient   *http.Client
	issuerID     string
	keyID        string
	vendorNumber string
	privateKey   *ecdsa.PrivateKey
	baseURL      string
	now          func() time.Time
}

// NewClient builds a report client from the credential payload stored
// on an App Store connection.
func NewClient(issuerID, keyID, vendorNumber, privateKeyPEM string) (*Client, error) {
	if strings.TrimSpace(issuerID) == "" {
		return nil, errors.New("issuer id is required")
	}
	if strings.TrimSpace(keyID) == "" {
		return nil, errors.New("key id is required")
	}
	if strings.TrimSpace(vendorNumber) == "" {
		return nil, errors.New("vendor number is required")
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing api private key: %w", err)
	}

	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		issuerID:     issuerID,
		keyID:        keyID,
		vendorNumber: vendorNumber,
		privateKey:   key,
		baseURL:      apiBaseURL,
		now:          time.Now,
	}, nil
}

func (c *Client) token() (string, error) {
	issuedAt := c.now().UTC()
	claims := jwt.MapClaims{
		"iss": c.issuerID,
		"iat": issuedAt.Unix(),
		"exp": issuedAt.Add(tokenLifetime).Unix(),
		"aud": tokenAudience,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = c.keyID
	signed, err := token.SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing api token: %w", err)
	}
	return signed, nil
}

// DownloadReport fetches one daily report as decompressed TSV bytes.
// A 404 means the report for that day has not been published yet and
// maps to a report-unavailable error the caller can treat as a skip.
func (c *Client) DownloadReport(ctx context.Context, reportType string, date time.Time) ([]byte, error) {
	signed, err := c.token()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting app store token")
	}

	query := url.Values{}
	query.Set("filter[frequency]", "DAILY")
	query.Set("filter[reportDate]", date.UTC().Format("2006-01-02"))
	query.Set("filter[reportType]", reportType)
	query.Set("filter[reportSubType]", reportSubType(reportType))
	query.Set("filter[vendorNumber]", c.vendorNumber)
	query.Set("filter[version]", "1_3")

	endpoint := c.baseURL + "/v1/salesReports?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building report request")
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set("Accept", "application/a-gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requesting sales report")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeReportUnavailable, "report not published").
			WithDetails(map[string]string{"date": date.UTC().Format("2006-01-02"), "type": reportType})
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, pkgerrors.New(pkgerrors.CodeAuthentication, "app store rejected the api key")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("sales report request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	return decompress(resp.Body)
}

// Ping verifies the credentials by requesting yesterday's subscription
// report. A missing report still proves the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	yesterday := c.now().UTC().AddDate(0, 0, -1)
	_, err := c.DownloadReport(ctx, ReportTypeSubscription, yesterday)
	if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeReportUnavailable) {
		return err
	}
	return nil
}

func reportSubType(reportType string) string {
	if reportType == ReportTypeSubscriber {
		return "DETAILED"
	}
	return "SUMMARY"
}

func decompress(body io.Reader) ([]byte, error) {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeParseFailure, err, "report payload is not gzip")
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeParseFailure, err, "decompressing report payload")
	}
	return raw, nil
}
