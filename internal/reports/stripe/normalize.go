package stripereport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Converter is the currency conversion surface the normalizer needs.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error)
}

// Normalizer maps Stripe API objects into the shared report batch shape.
// Stripe rows carry explicit type tags, so classification here is a direct
// mapping rather than label matching.
type Normalizer struct {
	converter Converter
	logger    *logger.Logger
}

// NormalizerParams wires the normalizer's dependencies.
type NormalizerParams struct {
	Converter Converter
	Logger    *logger.Logger
}

// NewNormalizer validates dependencies and builds a Normalizer.
func NewNormalizer(params NormalizerParams) (*Normalizer, error) {
	if params.Converter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "currency converter required")
	}
	return &Normalizer{converter: params.Converter, logger: params.Logger}, nil
}

// Normalize converts Stripe subscriptions and invoices into a batch with
// monetary amounts converted to the app's preferred currency.
func (n *Normalizer) Normalize(ctx context.Context, subs []*stripe.Subscription, invoices []*stripe.Invoice, preferredCurrency string) (reports.Batch, error) {
	batch := reports.Batch{FlowsReliable: true}

	for _, sub := range subs {
		normalized, err := normalizeSubscription(sub)
		if err != nil {
			batch.Diagnostics = append(batch.Diagnostics, err.Error())
			continue
		}
		batch.Subscriptions = append(batch.Subscriptions, normalized)
	}

	for _, inv := range invoices {
		event, ok, err := n.normalizeInvoice(ctx, inv, preferredCurrency)
		if err != nil {
			return reports.Batch{}, err
		}
		if !ok {
			continue
		}
		batch.Events = append(batch.Events, event)
	}

	return batch, nil
}

func normalizeSubscription(sub *stripe.Subscription) (reports.Subscription, error) {
	if sub == nil || sub.ID == "" {
		return reports.Subscription{}, fmt.Errorf("stripe subscription missing id")
	}

	out := reports.Subscription{
		ExternalID: sub.ID,
		Status:     mapStatus(sub.Status),
		WillCancel: sub.CancelAtPeriodEnd,
		StartDate:  time.Unix(sub.StartDate, 0).UTC(),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.EndedAt > 0 {
		ended := time.Unix(sub.EndedAt, 0).UTC()
		out.EndDate = &ended
	} else if sub.CanceledAt > 0 && out.Status == enums.SubscriptionStatusCanceled {
		canceled := time.Unix(sub.CanceledAt, 0).UTC()
		out.EndDate = &canceled
	}
	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0).UTC()
		out.TrialEnd = &trialEnd
		out.IsTrial = sub.Status == stripe.SubscriptionStatusTrialing
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.ProductID = price.ID
		out.PriceAmount = price.UnitAmount
		out.PriceCurrency = strings.ToUpper(string(price.Currency))
		if price.Recurring != nil {
			out.PriceInterval = mapInterval(price.Recurring.Interval)
		} else {
			out.PriceInterval = enums.PriceIntervalOther
		}
	} else {
		out.PriceInterval = enums.PriceIntervalOther
	}

	return out, nil
}

func (n *Normalizer) normalizeInvoice(ctx context.Context, inv *stripe.Invoice, preferredCurrency string) (reports.RevenueEvent, bool, error) {
	if inv == nil || inv.ID == "" {
		return reports.RevenueEvent{}, false, nil
	}
	if inv.Status != stripe.InvoiceStatusPaid {
		return reports.RevenueEvent{}, false, nil
	}
	subID := invoiceSubscriptionID(inv)
	if subID == "" {
		return reports.RevenueEvent{}, false, nil
	}

	occurredAt := time.Unix(inv.Created, 0).UTC()
	month := occurredAt.Format("2006-01")
	currency := strings.ToUpper(string(inv.Currency))

	amount, err := n.converter.Convert(ctx, minorUnits(inv.Total), currency, preferredCurrency, &month)
	if err != nil {
		return reports.RevenueEvent{}, false, err
	}

	event := reports.RevenueEvent{
		SubscriptionExternalID: subID,
		Type:                   mapBillingReason(inv),
		Amount:                 amount,
		Currency:               preferredCurrency,
		OccurredAt:             occurredAt,
		ExternalID:             inv.ID,
	}
	if inv.TotalExcludingTax > 0 {
		exclTax, err := n.converter.Convert(ctx, minorUnits(inv.TotalExcludingTax), currency, preferredCurrency, &month)
		if err != nil {
			return reports.RevenueEvent{}, false, err
		}
		event.AmountExcludingTax = decimal.NullDecimal{Decimal: exclTax, Valid: true}
	}
	return event, true, nil
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return ""
	}
	if inv.Parent.SubscriptionDetails.Subscription == nil {
		return ""
	}
	return inv.Parent.SubscriptionDetails.Subscription.ID
}

func mapBillingReason(inv *stripe.Invoice) enums.RevenueEventType {
	if inv.Total < 0 {
		return enums.RevenueEventTypeRefund
	}
	switch inv.BillingReason {
	case stripe.InvoiceBillingReasonSubscriptionCreate:
		return enums.RevenueEventTypeFirstPayment
	default:
		return enums.RevenueEventTypeRenewal
	}
}

func mapStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusPaused:
		return enums.SubscriptionStatusPaused
	default:
		return enums.SubscriptionStatusActive
	}
}

func mapInterval(interval stripe.PriceRecurringInterval) enums.PriceInterval {
	switch interval {
	case stripe.PriceRecurringIntervalMonth:
		return enums.PriceIntervalMonth
	case stripe.PriceRecurringIntervalYear:
		return enums.PriceIntervalYear
	default:
		return enums.PriceIntervalOther
	}
}

func minorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
