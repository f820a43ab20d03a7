package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

type identityConverter struct{}

func (identityConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error) {
	return amount, nil
}

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(AggregatorParams{Converter: identityConverter{}, PlatformFee: 0.15})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return agg
}

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func activeMonthlySub(priceCents int64) models.Subscription {
	return models.Subscription{
		ID:            uuid.New(),
		Status:        enums.SubscriptionStatusActive,
		StartDate:     testDay.AddDate(0, -2, 0),
		PriceAmount:   priceCents,
		PriceInterval: enums.PriceIntervalMonth,
		PriceCurrency: "USD",
	}
}

func TestComputeSnapshotMonthlyMRR(t *testing.T) {
	agg := newTestAggregator(t)

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		AppID:             uuid.New(),
		Platform:          enums.PlatformStripe,
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{activeMonthlySub(999)},
		FlowsReliable:     true,
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}

	if snapshot.MRR.StringFixed(2) != "9.99" {
		t.Fatalf("MRR = %s, want 9.99", snapshot.MRR.StringFixed(2))
	}
	if snapshot.ActiveSubscribers != 1 || snapshot.PaidSubscribers != 1 || snapshot.MonthlySubscribers != 1 {
		t.Fatalf("counts = %+v", snapshot)
	}
}

func TestComputeSnapshotYearlyMRRDividedByTwelve(t *testing.T) {
	agg := newTestAggregator(t)

	sub := activeMonthlySub(12000)
	sub.PriceInterval = enums.PriceIntervalYear

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{sub},
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if snapshot.MRR.StringFixed(2) != "10.00" {
		t.Fatalf("MRR = %s, want 10.00", snapshot.MRR.StringFixed(2))
	}
	if snapshot.YearlySubscribers != 1 {
		t.Fatalf("yearly subscribers = %d", snapshot.YearlySubscribers)
	}
}

func TestComputeSnapshotTrialsExcludedFromPaid(t *testing.T) {
	agg := newTestAggregator(t)

	trialEnd := testDay.AddDate(0, 0, 5)
	trial := activeMonthlySub(999)
	trial.IsTrial = true
	trial.TrialEnd = &trialEnd

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{trial, activeMonthlySub(999)},
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if snapshot.ActiveSubscribers != 2 || snapshot.TrialSubscribers != 1 || snapshot.PaidSubscribers != 1 {
		t.Fatalf("active %d trial %d paid %d", snapshot.ActiveSubscribers, snapshot.TrialSubscribers, snapshot.PaidSubscribers)
	}
	if snapshot.MRR.StringFixed(2) != "9.99" {
		t.Fatalf("trial must not contribute to MRR, got %s", snapshot.MRR.StringFixed(2))
	}
}

func TestComputeSnapshotRevenueWithVATBackout(t *testing.T) {
	agg := newTestAggregator(t)

	sub := activeMonthlySub(999)
	country := "DE"
	events := []models.RevenueEvent{
		{
			SubscriptionID: sub.ID,
			EventType:      enums.RevenueEventTypeRenewal,
			Amount:         decimal.RequireFromString("11.90"),
			Country:        &country,
			OccurredAt:     testDay.Add(10 * time.Hour),
		},
	}

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{sub},
		Events:            events,
		FlowsReliable:     true,
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}

	if snapshot.ChargedRevenue.StringFixed(2) != "11.90" {
		t.Fatalf("charged = %s", snapshot.ChargedRevenue.StringFixed(2))
	}
	// 11.90 / 1.19 (German VAT) = 10.00
	if snapshot.RevenueExclTax.StringFixed(2) != "10.00" {
		t.Fatalf("excl tax = %s, want 10.00", snapshot.RevenueExclTax.StringFixed(2))
	}
	// 10.00 * (1 - 0.15) = 8.50
	if snapshot.Proceeds.StringFixed(2) != "8.50" {
		t.Fatalf("proceeds = %s, want 8.50", snapshot.Proceeds.StringFixed(2))
	}
	if snapshot.RevenueExclTax.GreaterThan(snapshot.ChargedRevenue) {
		t.Fatal("excl-tax revenue must never exceed charged revenue")
	}
	if snapshot.ChargedRevenueMonthly.StringFixed(2) != "11.90" {
		t.Fatalf("monthly split = %s", snapshot.ChargedRevenueMonthly.StringFixed(2))
	}
	if snapshot.Renewals != 1 {
		t.Fatalf("renewals = %d", snapshot.Renewals)
	}
}

func TestComputeSnapshotRefundSubtracts(t *testing.T) {
	agg := newTestAggregator(t)

	sub := activeMonthlySub(999)
	events := []models.RevenueEvent{
		{SubscriptionID: sub.ID, EventType: enums.RevenueEventTypeRenewal, Amount: decimal.RequireFromString("9.99"), OccurredAt: testDay.Add(time.Hour)},
		{SubscriptionID: sub.ID, EventType: enums.RevenueEventTypeRefund, Amount: decimal.RequireFromString("-9.99"), OccurredAt: testDay.Add(2 * time.Hour)},
	}

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{sub},
		Events:            events,
		FlowsReliable:     true,
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if snapshot.ChargedRevenue.StringFixed(2) != "0.00" {
		t.Fatalf("charged = %s, want 0.00", snapshot.ChargedRevenue.StringFixed(2))
	}
	if snapshot.Refunds != 1 || snapshot.Renewals != 1 {
		t.Fatalf("refunds %d renewals %d", snapshot.Refunds, snapshot.Renewals)
	}
}

func TestComputeSnapshotCancellationsFromEndDate(t *testing.T) {
	agg := newTestAggregator(t)

	ended := testDay.Add(14 * time.Hour)
	canceled := activeMonthlySub(999)
	canceled.Status = enums.SubscriptionStatusCanceled
	canceled.EndDate = &ended

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{canceled},
		FlowsReliable:     true,
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if snapshot.Cancellations != 1 || snapshot.Churn != 1 {
		t.Fatalf("cancellations %d churn %d", snapshot.Cancellations, snapshot.Churn)
	}
}

func TestApplyReportTiersFillsOnlyZeroFields(t *testing.T) {
	agg := newTestAggregator(t)

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{activeMonthlySub(999)},
		Daily: &reports.DailyAggregate{
			Date:    testDay,
			Active:  500,
			New:     7,
			Revenue: decimal.RequireFromString("123.45"),
		},
		FlowsReliable: true,
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}

	// Subscriptions yielded a nonzero active count, so the report value
	// must not overwrite it.
	if snapshot.ActiveSubscribers != 1 {
		t.Fatalf("active = %d, want 1 (tier priority)", snapshot.ActiveSubscribers)
	}
	// No same-day events, so report-derived flows fill in.
	if snapshot.FirstPayments != 7 {
		t.Fatalf("first payments = %d, want 7", snapshot.FirstPayments)
	}
	if snapshot.ChargedRevenue.StringFixed(2) != "123.45" {
		t.Fatalf("charged = %s", snapshot.ChargedRevenue.StringFixed(2))
	}
}

func TestDayOverDayInference(t *testing.T) {
	agg := newTestAggregator(t)

	subs := []models.Subscription{activeMonthlySub(999), activeMonthlySub(999), activeMonthlySub(999)}
	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     subs,
		FlowsReliable:     false,
		Previous:          &models.MetricsSnapshot{ActiveSubscribers: 1},
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if snapshot.FirstPayments != 2 {
		t.Fatalf("inferred first payments = %d, want 2", snapshot.FirstPayments)
	}
}

func TestUnlabeledSourceFlowsDisabled(t *testing.T) {
	agg := newTestAggregator(t)

	sub := activeMonthlySub(999)
	events := []models.RevenueEvent{
		{SubscriptionID: sub.ID, EventType: enums.RevenueEventTypeRenewal, Amount: decimal.RequireFromString("9.99"), OccurredAt: testDay.Add(time.Hour)},
	}

	snapshot, err := agg.ComputeSnapshot(context.Background(), Input{
		Date:              testDay,
		PreferredCurrency: "USD",
		Subscriptions:     []models.Subscription{sub},
		Events:            events,
		FlowsReliable:     false,
	})
	if err != nil {
		t.Fatalf("ComputeSnapshot: %v", err)
	}
	if snapshot.Renewals != 0 {
		t.Fatalf("renewals = %d, want 0 when flows disabled", snapshot.Renewals)
	}
	// Revenue still counts even when flows are disabled.
	if snapshot.ChargedRevenue.StringFixed(2) != "9.99" {
		t.Fatalf("charged = %s", snapshot.ChargedRevenue.StringFixed(2))
	}
}
