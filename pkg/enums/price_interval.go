package enums

import "fmt"

// PriceInterval is the billing cadence of a subscription price.
type PriceInterval string

const (
	PriceIntervalMonth PriceInterval = "month"
	PriceIntervalYear  PriceInterval = "year"
	PriceIntervalOther PriceInterval = "other"
)

var validPriceIntervals = []PriceInterval{
	PriceIntervalMonth,
	PriceIntervalYear,
	PriceIntervalOther,
}

// String implements fmt.Stringer.
func (p PriceInterval) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PriceInterval) IsValid() bool {
	for _, candidate := range validPriceIntervals {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriceInterval converts raw input into a PriceInterval. Unknown
// cadences map to PriceIntervalOther rather than failing, since report
// schemas occasionally introduce new duration labels.
func ParsePriceInterval(value string) (PriceInterval, error) {
	switch value {
	case "":
		return "", fmt.Errorf("empty price interval")
	case string(PriceIntervalMonth), string(PriceIntervalYear):
		return PriceInterval(value), nil
	}
	return PriceIntervalOther, nil
}
