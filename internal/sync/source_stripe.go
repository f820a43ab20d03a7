package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/revlytic/revlytic-backend/internal/connections"
	stripereport "github.com/revlytic/revlytic-backend/internal/reports/stripe"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
	stripeclient "github.com/revlytic/revlytic-backend/pkg/stripe"
)

// stripeAPI is the slice of the card-processor client the source uses.
type stripeAPI interface {
	ListSubscriptions(ctx context.Context, createdSince int64) ([]*stripe.Subscription, error)
	ListInvoices(ctx context.Context, createdSince int64) ([]*stripe.Invoice, error)
}

type stripeSource struct {
	normalizer *stripereport.Normalizer
	logg       *logger.Logger
	newClient  func(apiKey string) (stripeAPI, error)
}

func newStripeSource(params SourcesParams) (*stripeSource, error) {
	if err := requireConverter(params); err != nil {
		return nil, err
	}
	normalizer, err := stripereport.NewNormalizer(stripereport.NormalizerParams{
		Converter: params.Converter,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &stripeSource{
		normalizer: normalizer,
		logg:       params.Logger,
		newClient: func(apiKey string) (stripeAPI, error) {
			return stripeclient.NewClient(apiKey)
		},
	}, nil
}

func (s *stripeSource) Platform() enums.Platform {
	return enums.PlatformStripe
}

func (s *stripeSource) FetchRange(ctx context.Context, conn *models.Connection, preferredCurrency string, from, to time.Time) (FetchResult, error) {
	var creds connections.StripeCredentials
	if err := json.Unmarshal(conn.Credentials, &creds); err != nil {
		return FetchResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding stripe credentials")
	}

	client, err := s.newClient(creds.APIKey)
	if err != nil {
		return FetchResult{}, pkgerrors.Wrap(pkgerrors.CodeAuthentication, err, "building stripe client")
	}

	subs, err := client.ListSubscriptions(ctx, from.Unix())
	if err != nil {
		return FetchResult{}, wrapStripeErr(err, "listing subscriptions")
	}
	invoices, err := client.ListInvoices(ctx, from.Unix())
	if err != nil {
		return FetchResult{}, wrapStripeErr(err, "listing invoices")
	}

	batch, err := s.normalizer.Normalize(ctx, subs, invoices, preferredCurrency)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Batch: batch}, nil
}

func wrapStripeErr(err error, action string) error {
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 401 {
		return pkgerrors.Wrap(pkgerrors.CodeAuthentication, err, "stripe rejected the api key")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
