package appstorereport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

type identityConverter struct{}

func (identityConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error) {
	return amount, nil
}

type doublingConverter struct{}

func (doublingConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error) {
	return amount.Mul(decimal.NewFromInt(2)), nil
}

func newTestParser(t *testing.T, conv Converter) *Parser {
	t.Helper()
	p, err := NewParser(ParserParams{Converter: conv})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func tsv(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

func TestParseSummaryCounts(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv(
		"App Name\tSubscription Name\tActive Standard Price Subscriptions\tActive Free Trial Introductory Offer Subscriptions",
		"MyApp\tPro Monthly\t120\t15",
		"MyApp\tPro Yearly\t30\t5",
	)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	batch := p.ParseSummary(context.Background(), raw, date)
	if len(batch.Daily) != 1 {
		t.Fatalf("got %d daily rows, want 1", len(batch.Daily))
	}

	agg := batch.Daily[0]
	if agg.Active != 170 {
		t.Fatalf("active = %d, want 170", agg.Active)
	}
	if agg.Trial != 20 {
		t.Fatalf("trial = %d, want 20", agg.Trial)
	}
	if agg.Paid != 150 {
		t.Fatalf("paid = %d, want 150", agg.Paid)
	}
	if !agg.Date.Equal(date) {
		t.Fatalf("date = %v", agg.Date)
	}
}

func TestParseSummaryUnrecognizedHeaderYieldsDiagnostic(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv("Foo\tBar", "1\t2")

	batch := p.ParseSummary(context.Background(), raw, time.Now().UTC())
	if !batch.Empty() {
		t.Fatal("unrecognized summary must yield an empty batch")
	}
	if len(batch.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(batch.Diagnostics))
	}
}

func TestParseDetailEmptyLabelPositivePriceIsRenewal(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv(
		"Event Date\tSubscription Apple ID\tSubscription Name\tEvent\tCustomer Price\tCustomer Currency\tCountry\tSubscription Duration",
		"2025-03-10\tsub-1\tPro Monthly\t\t4.99\tUSD\tUS\t1 Month",
	)

	batch, err := p.ParseDetail(context.Background(), raw, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "USD")
	if err != nil {
		t.Fatalf("ParseDetail: %v", err)
	}
	if len(batch.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(batch.Events))
	}

	event := batch.Events[0]
	if event.Type != enums.RevenueEventTypeRenewal {
		t.Fatalf("event type = %s, want renewal", event.Type)
	}
	if event.Amount.StringFixed(2) != "4.99" {
		t.Fatalf("amount = %s, want 4.99", event.Amount.StringFixed(2))
	}

	if len(batch.Subscriptions) != 1 {
		t.Fatalf("got %d subscriptions, want 1", len(batch.Subscriptions))
	}
	sub := batch.Subscriptions[0]
	if sub.PriceAmount != 499 {
		t.Fatalf("price amount = %d, want 499", sub.PriceAmount)
	}
	if sub.PriceInterval != enums.PriceIntervalMonth {
		t.Fatalf("price interval = %s", sub.PriceInterval)
	}
	if !batch.FlowsReliable {
		t.Fatal("detail report with an event column must keep flows reliable")
	}
}

func TestParseDetailConvertsCurrency(t *testing.T) {
	p := newTestParser(t, doublingConverter{})
	raw := tsv(
		"Event Date\tSubscription Apple ID\tEvent\tCustomer Price\tCustomer Currency",
		"2025-03-10\tsub-1\tRenew\t4.00\tEUR",
	)

	batch, err := p.ParseDetail(context.Background(), raw, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "USD")
	if err != nil {
		t.Fatalf("ParseDetail: %v", err)
	}
	if batch.Events[0].Amount.StringFixed(2) != "8.00" {
		t.Fatalf("amount = %s, want 8.00", batch.Events[0].Amount.StringFixed(2))
	}
	if batch.Events[0].Currency != "USD" {
		t.Fatalf("currency = %q, want USD", batch.Events[0].Currency)
	}
}

func TestParseDetailRefundFlagGoesNegative(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv(
		"Event Date\tSubscription Apple ID\tEvent\tCustomer Price\tCustomer Currency\tRefund",
		"2025-03-10\tsub-1\t\t4.99\tUSD\tYes",
	)

	batch, err := p.ParseDetail(context.Background(), raw, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "USD")
	if err != nil {
		t.Fatalf("ParseDetail: %v", err)
	}
	event := batch.Events[0]
	if event.Type != enums.RevenueEventTypeRefund {
		t.Fatalf("event type = %s, want refund", event.Type)
	}
	if !event.Amount.IsNegative() {
		t.Fatalf("refund amount = %s, want negative", event.Amount)
	}
}

func TestParseDetailMissingLabelColumnDisablesFlows(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv(
		"Event Date\tSubscription Apple ID\tCustomer Price\tCustomer Currency",
		"2025-03-10\tsub-1\t4.99\tUSD",
	)

	batch, err := p.ParseDetail(context.Background(), raw, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "USD")
	if err != nil {
		t.Fatalf("ParseDetail: %v", err)
	}
	if batch.FlowsReliable {
		t.Fatal("schema without an event column must disable flow extraction")
	}
	// Revenue is still recorded even though flows fall back to deltas.
	if len(batch.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(batch.Events))
	}
}

func TestParseEventsAggregatesFlows(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv(
		"Event Date\tEvent\tQuantity\tCustomer Price\tCustomer Currency\tSubscription Apple ID",
		"2025-03-10\tSubscribe\t2\t4.99\tUSD\tsub-1",
		"2025-03-10\tRenew\t3\t4.99\tUSD\tsub-2",
		"2025-03-10\tCancel\t1\t\t\tsub-3",
		"2025-03-11\tRefund\t1\t4.99\tUSD\tsub-2",
	)

	batch, err := p.ParseEvents(context.Background(), raw, "USD")
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(batch.Daily) != 2 {
		t.Fatalf("got %d daily rows, want 2", len(batch.Daily))
	}

	day1 := batch.Daily[0]
	if day1.New != 2 || day1.Renewals != 3 || day1.Canceled != 1 {
		t.Fatalf("day1 flows = new %d renewals %d canceled %d", day1.New, day1.Renewals, day1.Canceled)
	}

	var refundSeen bool
	for _, event := range batch.Events {
		if event.Type == enums.RevenueEventTypeRefund {
			refundSeen = true
			if !event.Amount.IsNegative() {
				t.Fatalf("refund amount = %s, want negative", event.Amount)
			}
		}
	}
	if !refundSeen {
		t.Fatal("expected a refund revenue event")
	}
}

func TestParseEventsMissingColumnsYieldsDiagnostic(t *testing.T) {
	p := newTestParser(t, identityConverter{})
	raw := tsv("Foo\tBar", "a\tb")

	batch, err := p.ParseEvents(context.Background(), raw, "USD")
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if !batch.Empty() {
		t.Fatal("unrecognized event report must yield an empty batch")
	}
	if len(batch.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(batch.Diagnostics))
	}
}
