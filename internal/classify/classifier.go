package classify

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Result is the outcome of classifying one report row.
type Result string

const (
	ResultFirstPayment Result = "first_payment"
	ResultRenewal      Result = "renewal"
	ResultRefund       Result = "refund"
	ResultCancellation Result = "cancellation"
	ResultNone         Result = "none"
)

// Row is the classifier's input: a free-text event label plus the row's
// price when the source exposes one.
type Row struct {
	Label string
	Price decimal.Decimal
}

// Vocabulary patterns are matched case-insensitively against the whole
// label. Order within the chain is a business rule: cancellation and
// refund labels win over renewal labels, renewals over first payments,
// and unlabeled positive-price rows default to renewal because the
// app-store detail report omits the reason for standard renewals.
var (
	cancelPatterns = compilePatterns(
		`cancel`,
		`expire`,
		`churn`,
	)
	refundPatterns = compilePatterns(
		`refund`,
		`chargeback`,
		`charge.?back`,
	)
	renewalPatterns = compilePatterns(
		`renew`,
		`rate after one year`,
		`recurring`,
	)
	firstPaymentPatterns = compilePatterns(
		`subscribe`,
		`new subscription`,
		`introductory`,
		`initial purchase`,
		`first payment`,
		`free trial`,
		`start trial`,
	)
)

// Classify runs the priority chain over a single row. Rows from sources
// with no label column at all must not be passed here; those sources have
// flow extraction disabled entirely and derive flows from day-over-day
// subscriber deltas instead.
func Classify(row Row) Result {
	label := strings.ToLower(strings.TrimSpace(row.Label))

	switch {
	case matchAny(refundPatterns, label):
		return ResultRefund
	case matchAny(cancelPatterns, label):
		return ResultCancellation
	case matchAny(renewalPatterns, label):
		return ResultRenewal
	case matchAny(firstPaymentPatterns, label):
		return ResultFirstPayment
	case row.Price.IsPositive():
		// Unrecognized or empty label with a real charge attached.
		return ResultRenewal
	default:
		return ResultNone
	}
}

// EventType maps a result to the revenue event enum. Cancellation and
// none carry no revenue, so the bool result reports whether a revenue
// event should be recorded at all.
func EventType(result Result) (enums.RevenueEventType, bool) {
	switch result {
	case ResultFirstPayment:
		return enums.RevenueEventTypeFirstPayment, true
	case ResultRenewal:
		return enums.RevenueEventTypeRenewal, true
	case ResultRefund:
		return enums.RevenueEventTypeRefund, true
	default:
		return "", false
	}
}

// RevenueSign returns the multiplier applied to a row's amount: refunds
// contribute negative revenue, payments positive, everything else zero.
func RevenueSign(result Result) decimal.Decimal {
	switch result {
	case ResultRefund:
		return decimal.NewFromInt(-1)
	case ResultFirstPayment, ResultRenewal:
		return decimal.NewFromInt(1)
	default:
		return decimal.Zero
	}
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

func matchAny(patterns []*regexp.Regexp, label string) bool {
	if label == "" {
		return false
	}
	for _, pattern := range patterns {
		if pattern.MatchString(label) {
			return true
		}
	}
	return false
}
