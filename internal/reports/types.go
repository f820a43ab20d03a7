package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Subscription is a parser-normalized subscription row, keyed by the
// platform-native external ID. Persistence identifiers are attached later
// by the ingestion layer.
type Subscription struct {
	ExternalID    string
	CustomerID    string
	Status        enums.SubscriptionStatus
	ProductID     string
	StartDate     time.Time
	EndDate       *time.Time
	IsTrial       bool
	WillCancel    bool
	TrialEnd      *time.Time
	PriceAmount   int64
	PriceInterval enums.PriceInterval
	PriceCurrency string
}

// RevenueEvent is a parser-normalized monetary transaction tied to its
// owning subscription by external ID. Amount is already converted to the
// app's preferred currency by the parser that produced it.
type RevenueEvent struct {
	SubscriptionExternalID string
	Type                   enums.RevenueEventType
	Amount                 decimal.Decimal
	AmountExcludingTax     decimal.NullDecimal
	AmountProceeds         decimal.NullDecimal
	Currency               string
	Country                string
	OccurredAt             time.Time
	ExternalID             string
}

// DailyAggregate is a per-date metric row for sources that publish
// pre-aggregated counts instead of per-subscription records. Flow fields
// sum across files for a date; stock fields take the maximum observed.
type DailyAggregate struct {
	Date          time.Time
	Active        int
	Trial         int
	Paid          int
	New           int
	Canceled      int
	Renewals      int
	Revenue       decimal.Decimal
	RevenueEvents int
}

// Batch is the shared output contract of every report parser. A parser
// fills whichever shape its source supports. FlowsReliable is false when
// the source schema had no event label column at all, in which case flow
// counts must be derived from day-over-day subscriber deltas downstream.
type Batch struct {
	Subscriptions []Subscription
	Events        []RevenueEvent
	Daily         []DailyAggregate
	FlowsReliable bool
	Diagnostics   []string
}

// Empty reports whether the batch carries no usable rows.
func (b Batch) Empty() bool {
	return len(b.Subscriptions) == 0 && len(b.Events) == 0 && len(b.Daily) == 0
}

// Merge appends another batch's rows and diagnostics into this one.
func (b *Batch) Merge(other Batch) {
	b.Subscriptions = append(b.Subscriptions, other.Subscriptions...)
	b.Events = append(b.Events, other.Events...)
	b.Daily = append(b.Daily, other.Daily...)
	b.Diagnostics = append(b.Diagnostics, other.Diagnostics...)
	b.FlowsReliable = b.FlowsReliable || other.FlowsReliable
}
