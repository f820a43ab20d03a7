package currency

import "github.com/shopspring/decimal"

// vatRates maps ISO country codes to standard VAT/GST rates. Used to back
// out tax from gross charges when a report omits the tax-exclusive amount.
var vatRates = map[string]decimal.Decimal{
	"AT": decimal.RequireFromString("0.20"),
	"BE": decimal.RequireFromString("0.21"),
	"BG": decimal.RequireFromString("0.20"),
	"HR": decimal.RequireFromString("0.25"),
	"CY": decimal.RequireFromString("0.19"),
	"CZ": decimal.RequireFromString("0.21"),
	"DK": decimal.RequireFromString("0.25"),
	"EE": decimal.RequireFromString("0.22"),
	"FI": decimal.RequireFromString("0.24"),
	"FR": decimal.RequireFromString("0.20"),
	"DE": decimal.RequireFromString("0.19"),
	"GR": decimal.RequireFromString("0.24"),
	"HU": decimal.RequireFromString("0.27"),
	"IE": decimal.RequireFromString("0.23"),
	"IT": decimal.RequireFromString("0.22"),
	"LV": decimal.RequireFromString("0.21"),
	"LT": decimal.RequireFromString("0.21"),
	"LU": decimal.RequireFromString("0.17"),
	"MT": decimal.RequireFromString("0.18"),
	"NL": decimal.RequireFromString("0.21"),
	"PL": decimal.RequireFromString("0.23"),
	"PT": decimal.RequireFromString("0.23"),
	"RO": decimal.RequireFromString("0.19"),
	"SK": decimal.RequireFromString("0.20"),
	"SI": decimal.RequireFromString("0.22"),
	"ES": decimal.RequireFromString("0.21"),
	"SE": decimal.RequireFromString("0.25"),
	"GB": decimal.RequireFromString("0.20"),
	"NO": decimal.RequireFromString("0.25"),
	"CH": decimal.RequireFromString("0.081"),
	"AU": decimal.RequireFromString("0.10"),
	"NZ": decimal.RequireFromString("0.15"),
	"JP": decimal.RequireFromString("0.10"),
	"KR": decimal.RequireFromString("0.10"),
	"SG": decimal.RequireFromString("0.09"),
	"CA": decimal.RequireFromString("0.05"),
	"MX": decimal.RequireFromString("0.16"),
	"BR": decimal.RequireFromString("0.17"),
	"IN": decimal.RequireFromString("0.18"),
	"ZA": decimal.RequireFromString("0.15"),
	"TR": decimal.RequireFromString("0.20"),
	"IL": decimal.RequireFromString("0.17"),
	"AE": decimal.RequireFromString("0.05"),
	"SA": decimal.RequireFromString("0.15"),
}

// VATRate returns the standard VAT rate for a country code. The bool result
// reports whether the country is in the table.
func VATRate(countryCode string) (decimal.Decimal, bool) {
	rate, ok := vatRates[normalizeCurrency(countryCode)]
	return rate, ok
}

// RevenueExcludingVAT backs the country's standard VAT out of a gross
// amount. Unknown countries return the amount unchanged.
func RevenueExcludingVAT(amount decimal.Decimal, countryCode string) decimal.Decimal {
	rate, ok := VATRate(countryCode)
	if !ok {
		return amount
	}
	return amount.DivRound(decimal.NewFromInt(1).Add(rate), 6)
}
