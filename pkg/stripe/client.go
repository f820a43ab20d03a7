package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

var errAPIKeyRequired = errors.New("stripe api key is required")

var allowedKeyPrefixes = []string{"sk_test", "sk_live", "rk_test", "rk_live"}

// Client wraps Stripe's API client for a single connection's secret key.
// Each billing connection carries its own key, so clients are constructed
// per connection rather than once at startup.
type Client struct {
	api *stripe.Client
}

// NewClient validates the secret key and builds a Stripe API client bound to it.
func NewClient(apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(apiKey); err != nil {
		return nil, err
	}

	return &Client{api: stripe.NewClient(apiKey)}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// ListSubscriptions drains the subscription list for the key's account,
// including canceled subscriptions so churn history survives resyncs.
func (c *Client) ListSubscriptions(ctx context.Context, createdSince int64) ([]*stripe.Subscription, error) {
	if c == nil || c.api == nil {
		return nil, errAPIKeyRequired
	}

	params := &stripe.SubscriptionListParams{
		Status: stripe.String("all"),
	}
	params.Limit = stripe.Int64(100)
	if createdSince > 0 {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: createdSince}
	}

	var out []*stripe.Subscription
	for sub, err := range c.api.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("list stripe subscriptions: %w", err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// ListInvoices drains paid invoices created at or after the given unix timestamp.
func (c *Client) ListInvoices(ctx context.Context, createdSince int64) ([]*stripe.Invoice, error) {
	if c == nil || c.api == nil {
		return nil, errAPIKeyRequired
	}

	params := &stripe.InvoiceListParams{}
	params.Limit = stripe.Int64(100)
	if createdSince > 0 {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: createdSince}
	}

	var out []*stripe.Invoice
	for inv, err := range c.api.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, fmt.Errorf("list stripe invoices: %w", err)
		}
		out = append(out, inv)
	}
	return out, nil
}

// Ping verifies the key is usable by requesting a single subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errAPIKeyRequired
	}

	params := &stripe.SubscriptionListParams{Status: stripe.String("all")}
	params.Limit = stripe.Int64(1)
	for _, err := range c.api.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return fmt.Errorf("stripe credential check: %w", err)
		}
		break
	}
	return nil
}

func validateAPIKey(key string) error {
	for _, prefix := range allowedKeyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe api key must start with one of %s", strings.Join(allowedKeyPrefixes, ", "))
}
