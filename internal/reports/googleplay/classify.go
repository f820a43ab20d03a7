package googleplayreport

import (
	"regexp"
	"strings"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Object names follow Play Console export conventions, so filename and
// path patterns settle most files. Files that match nothing get a second
// chance via header-content sniffing.
var (
	financialNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)earnings`),
		regexp.MustCompile(`(?i)financial`),
		regexp.MustCompile(`(?i)sales/`),
		regexp.MustCompile(`(?i)salesreport`),
	}
	subscriptionNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)subscription`),
		regexp.MustCompile(`(?i)financial-stats/subscriptions`),
	}
	statisticsNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)stats/installs`),
		regexp.MustCompile(`(?i)statistics`),
		regexp.MustCompile(`(?i)installs_`),
		regexp.MustCompile(`(?i)overview`),
	}
)

// ClassifyObject buckets a report file by its object name.
func ClassifyObject(name string) enums.ReportKind {
	for _, pattern := range subscriptionNamePatterns {
		if pattern.MatchString(name) {
			return enums.ReportKindSubscription
		}
	}
	for _, pattern := range financialNamePatterns {
		if pattern.MatchString(name) {
			return enums.ReportKindFinancial
		}
	}
	for _, pattern := range statisticsNamePatterns {
		if pattern.MatchString(name) {
			return enums.ReportKindStatistics
		}
	}
	return enums.ReportKindUnknown
}

// SniffKind inspects the decoded header line of an unclassified file.
func SniffKind(decoded []byte) enums.ReportKind {
	header := strings.ToLower(firstLine(decoded))
	switch {
	case strings.Contains(header, "transaction type") || strings.Contains(header, "charged amount") || strings.Contains(header, "merchant currency"):
		return enums.ReportKindFinancial
	case strings.Contains(header, "subscription") || strings.Contains(header, "subscribers"):
		return enums.ReportKindSubscription
	case strings.Contains(header, "installs") || strings.Contains(header, "active device"):
		return enums.ReportKindStatistics
	default:
		return enums.ReportKindUnknown
	}
}

func firstLine(raw []byte) string {
	text := string(raw)
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		return text[:idx]
	}
	return text
}
