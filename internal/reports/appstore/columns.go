package appstorereport

import (
	"regexp"
	"strings"
)

// Column discovery is pattern-based because Apple renames and reorders
// columns between report schema versions. Each field carries an ordered
// pattern list; the first pattern matching any header cell wins. New
// schema versions are accommodated by adding a pattern, not by changing
// parsing logic.
var (
	dateColumns = columnPatterns(
		`^event\s*date$`,
		`^begin\s*date$`,
		`^start\s*date$`,
		`^date$`,
	)
	eventColumns = columnPatterns(
		`^event$`,
		`^proceeds\s*reason$`,
		`^consumption\s*reason$`,
	)
	quantityColumns = columnPatterns(
		`^quantity$`,
		`^units$`,
	)
	priceColumns = columnPatterns(
		`^customer\s*price$`,
		`^price$`,
	)
	currencyColumns = columnPatterns(
		`^customer\s*currency$`,
		`^currency$`,
	)
	proceedsColumns = columnPatterns(
		`^developer\s*proceeds$`,
		`^proceeds$`,
	)
	countryColumns = columnPatterns(
		`^country$`,
		`^territory$`,
		`^storefront$`,
	)
	subscriptionIDColumns = columnPatterns(
		`^subscription\s*apple\s*id$`,
		`^original\s*transaction\s*id$`,
		`^subscriber\s*id$`,
	)
	productColumns = columnPatterns(
		`^subscription\s*name$`,
		`^app\s*apple\s*id$`,
		`^sku$`,
	)
	activeStandardColumns = columnPatterns(
		`^active\s*standard\s*price\s*subscriptions$`,
		`^active\s*subscriptions$`,
		`^subscribers$`,
	)
	activeTrialColumns = columnPatterns(
		`^active\s*free\s*trial\s*introductory\s*offer\s*subscriptions$`,
		`^free\s*trial.*subscriptions$`,
		`^trial.*subscriptions$`,
	)
	subscriptionStartColumns = columnPatterns(
		`^subscription\s*start\s*date$`,
		`^original\s*start\s*date$`,
		`^purchase\s*date$`,
	)
	subscriptionExpireColumns = columnPatterns(
		`^subscription\s*expiration\s*date$`,
		`^expiration\s*date$`,
		`^expire\s*date$`,
	)
	refundColumns = columnPatterns(
		`^refund$`,
	)
	durationColumns = columnPatterns(
		`^subscription\s*duration$`,
		`^duration$`,
	)
	autoRenewColumns = columnPatterns(
		`^auto\s*.?renew(al)?\s*status$`,
		`^auto\s*.?renew$`,
	)
)

func columnPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

// findColumn locates a field's column index in the header row, or -1.
func findColumn(header []string, patterns []*regexp.Regexp) int {
	for _, pattern := range patterns {
		for i, cell := range header {
			if pattern.MatchString(strings.TrimSpace(cell)) {
				return i
			}
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
