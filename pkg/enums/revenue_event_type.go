package enums

import "fmt"

// RevenueEventType classifies a monetary transaction.
type RevenueEventType string

const (
	RevenueEventTypeFirstPayment RevenueEventType = "first_payment"
	RevenueEventTypeRenewal      RevenueEventType = "renewal"
	RevenueEventTypeRefund       RevenueEventType = "refund"
)

var validRevenueEventTypes = []RevenueEventType{
	RevenueEventTypeFirstPayment,
	RevenueEventTypeRenewal,
	RevenueEventTypeRefund,
}

// String implements fmt.Stringer.
func (t RevenueEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t RevenueEventType) IsValid() bool {
	for _, candidate := range validRevenueEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRevenueEventType converts raw input into a RevenueEventType.
func ParseRevenueEventType(value string) (RevenueEventType, error) {
	for _, candidate := range validRevenueEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue event type %q", value)
}
