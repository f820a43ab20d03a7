package aggregate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/internal/currency"
	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Converter is the currency conversion surface the aggregator needs.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error)
}

// Aggregator computes one MetricsSnapshot per (app, platform, date) from
// stored subscriptions, revenue events, and any report-derived per-date
// aggregates. Metric sources are tiered: platform report aggregates win,
// then same-file summary columns, then day-over-day inference; a lower
// tier only fills a field the higher tiers left at zero.
type Aggregator struct {
	converter   Converter
	platformFee decimal.Decimal
	logger      *logger.Logger
}

// AggregatorParams wires the aggregator's dependencies. PlatformFee is
// the assumed store commission used when a report carries no proceeds.
type AggregatorParams struct {
	Converter   Converter
	PlatformFee float64
	Logger      *logger.Logger
}

// NewAggregator validates dependencies and builds an Aggregator.
func NewAggregator(params AggregatorParams) (*Aggregator, error) {
	if params.Converter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "currency converter required")
	}
	if params.PlatformFee < 0 || params.PlatformFee >= 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform fee must be in [0, 1)")
	}
	return &Aggregator{
		converter:   params.Converter,
		platformFee: decimal.NewFromFloat(params.PlatformFee),
		logger:      params.Logger,
	}, nil
}

// Input carries everything needed to compute one snapshot.
type Input struct {
	AppID             uuid.UUID
	Platform          enums.Platform
	Date              time.Time
	PreferredCurrency string

	Subscriptions []models.Subscription
	Events        []models.RevenueEvent

	// Daily is the merged report-derived aggregate for the date, when
	// the source publishes one. FlowsReliable is false when the source
	// schema had no event label column.
	Daily         *reports.DailyAggregate
	FlowsReliable bool

	// Previous is the prior day's snapshot, used for day-over-day
	// flow inference when no higher tier yields a signal.
	Previous *models.MetricsSnapshot
}

// ComputeSnapshot produces the snapshot for the input's date.
func (a *Aggregator) ComputeSnapshot(ctx context.Context, in Input) (*models.MetricsSnapshot, error) {
	dayStart := in.Date.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	snapshot := &models.MetricsSnapshot{
		AppID:    in.AppID,
		Platform: in.Platform,
		Date:     dayStart,
	}

	a.countSubscribers(snapshot, in.Subscriptions, dayStart, dayEnd)
	if err := a.computeMRR(ctx, snapshot, in, dayStart, dayEnd); err != nil {
		return nil, err
	}
	if err := a.computeRevenue(ctx, snapshot, in, dayStart, dayEnd); err != nil {
		return nil, err
	}
	a.countFlows(snapshot, in, dayStart, dayEnd)
	a.applyReportTiers(snapshot, in)

	return snapshot, nil
}

func (a *Aggregator) countSubscribers(snapshot *models.MetricsSnapshot, subs []models.Subscription, dayStart, dayEnd time.Time) {
	for _, sub := range subs {
		if !sub.ActiveOn(dayStart, dayEnd) {
			continue
		}
		snapshot.ActiveSubscribers++
		if sub.WillCancel {
			snapshot.WillCancel++
		}
		if sub.TrialOn(dayStart, dayEnd) {
			snapshot.TrialSubscribers++
			continue
		}
		snapshot.PaidSubscribers++
		switch sub.PriceInterval {
		case enums.PriceIntervalMonth:
			snapshot.MonthlySubscribers++
		case enums.PriceIntervalYear:
			snapshot.YearlySubscribers++
		}
	}
}

// computeMRR sums each active paid subscription's monthly-equivalent
// price, converted with the rate as of the snapshot's month.
func (a *Aggregator) computeMRR(ctx context.Context, snapshot *models.MetricsSnapshot, in Input, dayStart, dayEnd time.Time) error {
	month := dayStart.Format("2006-01")
	twelve := decimal.NewFromInt(12)

	total := decimal.Zero
	for _, sub := range in.Subscriptions {
		if !sub.ActiveOn(dayStart, dayEnd) || sub.TrialOn(dayStart, dayEnd) {
			continue
		}
		if sub.PriceAmount <= 0 {
			continue
		}

		price := decimal.New(sub.PriceAmount, -2)
		var monthly decimal.Decimal
		switch sub.PriceInterval {
		case enums.PriceIntervalMonth:
			monthly = price
		case enums.PriceIntervalYear:
			monthly = price.DivRound(twelve, 6)
		default:
			continue
		}

		converted, err := a.converter.Convert(ctx, monthly, sub.PriceCurrency, in.PreferredCurrency, &month)
		if err != nil {
			return err
		}
		total = total.Add(converted)
	}

	snapshot.MRR = currency.RoundMoney(total)
	return nil
}

func (a *Aggregator) computeRevenue(ctx context.Context, snapshot *models.MetricsSnapshot, in Input, dayStart, dayEnd time.Time) error {
	intervals := map[uuid.UUID]enums.PriceInterval{}
	for _, sub := range in.Subscriptions {
		intervals[sub.ID] = sub.PriceInterval
	}

	charged := decimal.Zero
	chargedMonthly := decimal.Zero
	chargedYearly := decimal.Zero
	exclTax := decimal.Zero
	exclTaxMonthly := decimal.Zero
	exclTaxYearly := decimal.Zero
	proceeds := decimal.Zero
	proceedsMonthly := decimal.Zero
	proceedsYearly := decimal.Zero

	for _, event := range in.Events {
		if event.OccurredAt.Before(dayStart) || event.OccurredAt.After(dayEnd) {
			continue
		}

		amount := event.Amount
		rowExclTax := a.revenueExcludingTax(event)
		rowProceeds := a.proceedsFor(event, rowExclTax)

		charged = charged.Add(amount)
		exclTax = exclTax.Add(rowExclTax)
		proceeds = proceeds.Add(rowProceeds)

		switch intervals[event.SubscriptionID] {
		case enums.PriceIntervalMonth:
			chargedMonthly = chargedMonthly.Add(amount)
			exclTaxMonthly = exclTaxMonthly.Add(rowExclTax)
			proceedsMonthly = proceedsMonthly.Add(rowProceeds)
		case enums.PriceIntervalYear:
			chargedYearly = chargedYearly.Add(amount)
			exclTaxYearly = exclTaxYearly.Add(rowExclTax)
			proceedsYearly = proceedsYearly.Add(rowProceeds)
		}
	}

	snapshot.ChargedRevenue = currency.RoundMoney(charged)
	snapshot.ChargedRevenueMonthly = currency.RoundMoney(chargedMonthly)
	snapshot.ChargedRevenueYearly = currency.RoundMoney(chargedYearly)
	snapshot.RevenueExclTax = currency.RoundMoney(exclTax)
	snapshot.RevenueExclTaxMonthly = currency.RoundMoney(exclTaxMonthly)
	snapshot.RevenueExclTaxYearly = currency.RoundMoney(exclTaxYearly)
	snapshot.Proceeds = currency.RoundMoney(proceeds)
	snapshot.ProceedsMonthly = currency.RoundMoney(proceedsMonthly)
	snapshot.ProceedsYearly = currency.RoundMoney(proceedsYearly)
	return nil
}

// revenueExcludingTax prefers the report's own tax-exclusive figure, then
// backs VAT out with the country's standard rate, then leaves the amount
// unmodified.
func (a *Aggregator) revenueExcludingTax(event models.RevenueEvent) decimal.Decimal {
	if event.AmountExcludingTax.Valid {
		return event.AmountExcludingTax.Decimal
	}
	if event.Country != nil {
		return currency.RevenueExcludingVAT(event.Amount, *event.Country)
	}
	return event.Amount
}

func (a *Aggregator) proceedsFor(event models.RevenueEvent, exclTax decimal.Decimal) decimal.Decimal {
	if event.AmountProceeds.Valid {
		vatPortion := event.Amount.Sub(exclTax)
		return event.AmountProceeds.Decimal.Sub(vatPortion)
	}
	one := decimal.NewFromInt(1)
	return exclTax.Mul(one.Sub(a.platformFee))
}

// countFlows derives flow metrics from classified same-day events, plus
// cancellations from subscriptions whose end date fell inside the day.
// Sources without an event label column skip event-derived flows.
func (a *Aggregator) countFlows(snapshot *models.MetricsSnapshot, in Input, dayStart, dayEnd time.Time) {
	if in.FlowsReliable {
		for _, event := range in.Events {
			if event.OccurredAt.Before(dayStart) || event.OccurredAt.After(dayEnd) {
				continue
			}
			switch event.EventType {
			case enums.RevenueEventTypeFirstPayment:
				snapshot.FirstPayments++
			case enums.RevenueEventTypeRenewal:
				snapshot.Renewals++
			case enums.RevenueEventTypeRefund:
				snapshot.Refunds++
			}
		}
	}

	for _, sub := range in.Subscriptions {
		if sub.Status != enums.SubscriptionStatusCanceled || sub.EndDate == nil {
			continue
		}
		if sub.EndDate.Before(dayStart) || sub.EndDate.After(dayEnd) {
			continue
		}
		snapshot.Cancellations++
	}
	snapshot.Churn = snapshot.Cancellations
}

// applyReportTiers overlays report-derived aggregates and, as the last
// resort, day-over-day inference. Each field falls back independently and
// a nonzero higher-tier value is never overwritten.
func (a *Aggregator) applyReportTiers(snapshot *models.MetricsSnapshot, in Input) {
	if in.Daily != nil {
		fillCount(&snapshot.ActiveSubscribers, in.Daily.Active)
		fillCount(&snapshot.TrialSubscribers, in.Daily.Trial)
		fillCount(&snapshot.PaidSubscribers, in.Daily.Paid)
		fillCount(&snapshot.FirstPayments, in.Daily.New)
		fillCount(&snapshot.Renewals, in.Daily.Renewals)
		if snapshot.Cancellations == 0 && in.Daily.Canceled > 0 {
			snapshot.Cancellations = in.Daily.Canceled
			snapshot.Churn = in.Daily.Canceled
		}
		if snapshot.ChargedRevenue.IsZero() && !in.Daily.Revenue.IsZero() {
			snapshot.ChargedRevenue = currency.RoundMoney(in.Daily.Revenue)
		}
	}

	if in.Previous == nil {
		return
	}
	delta := snapshot.ActiveSubscribers - in.Previous.ActiveSubscribers
	if snapshot.FirstPayments == 0 && delta > 0 {
		snapshot.FirstPayments = delta
	}
	if snapshot.Cancellations == 0 && delta < 0 {
		snapshot.Cancellations = -delta
		snapshot.Churn = -delta
	}
}

func fillCount(target *int, value int) {
	if *target == 0 && value > 0 {
		*target = value
	}
}
