package appstoreconnect

import (
	"compress/gzip"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
)

func testPrivateKeyPEM(t *testing.T) (string, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	encoded := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	return string(encoded), key
}

func newTestClient(t *testing.T, baseURL string) (*Client, *ecdsa.PrivateKey) {
	t.Helper()
	keyPEM, key := testPrivateKeyPEM(t)
	client, err := NewClient("issuer-1", "KEY123", "88888888", keyPEM)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.baseURL = baseURL
	client.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return client, key
}

func TestNewClientValidatesInput(t *testing.T) {
	keyPEM, _ := testPrivateKeyPEM(t)
	if _, err := NewClient("", "KEY123", "88888888", keyPEM); err == nil {
		t.Fatal("expected error for missing issuer id")
	}
	if _, err := NewClient("issuer-1", "KEY123", "88888888", "not a pem"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestTokenCarriesIssuerAndKeyID(t *testing.T) {
	client, key := newTestClient(t, "http://unused")

	signed, err := client.token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithTimeFunc(func() time.Time {
		return time.Date(2025, 3, 10, 12, 1, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if kid := parsed.Header["kid"]; kid != "KEY123" {
		t.Fatalf("kid = %v", kid)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["iss"] != "issuer-1" {
		t.Fatalf("iss = %v", claims["iss"])
	}
	if claims["aud"] != tokenAudience {
		t.Fatalf("aud = %v", claims["aud"])
	}
}

func TestDownloadReportDecompressesPayload(t *testing.T) {
	tsv := "Event Date\tEvent\tQuantity\n2025-03-09\tRenew\t3\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		query := r.URL.Query()
		if query.Get("filter[reportType]") != ReportTypeSubscriptionEvent {
			t.Errorf("reportType = %s", query.Get("filter[reportType]"))
		}
		if query.Get("filter[reportDate]") != "2025-03-09" {
			t.Errorf("reportDate = %s", query.Get("filter[reportDate]"))
		}
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(tsv))
		_ = gz.Close()
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	raw, err := client.DownloadReport(context.Background(), ReportTypeSubscriptionEvent, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DownloadReport: %v", err)
	}
	if string(raw) != tsv {
		t.Fatalf("payload = %q", raw)
	}
}

func TestDownloadReportStatusMapping(t *testing.T) {
	status := http.StatusNotFound
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	ctx := context.Background()
	day := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	_, err := client.DownloadReport(ctx, ReportTypeSubscription, day)
	if !pkgerrors.HasCode(err, pkgerrors.CodeReportUnavailable) {
		t.Fatalf("404 should map to report unavailable, got %v", err)
	}

	status = http.StatusForbidden
	_, err = client.DownloadReport(ctx, ReportTypeSubscription, day)
	if !pkgerrors.HasCode(err, pkgerrors.CodeAuthentication) {
		t.Fatalf("403 should map to authentication, got %v", err)
	}
}
