package currency

import "github.com/shopspring/decimal"

const baseCurrency = "USD"

// staticUSDRates holds approximate units-per-USD rates for display-grade
// estimation only. Persisted financial records must always go through
// Converter.Convert against stored rates.
var staticUSDRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("0.79"),
	"JPY": decimal.RequireFromString("150.0"),
	"CAD": decimal.RequireFromString("1.36"),
	"AUD": decimal.RequireFromString("1.52"),
	"CHF": decimal.RequireFromString("0.88"),
	"CNY": decimal.RequireFromString("7.20"),
	"SEK": decimal.RequireFromString("10.50"),
	"NOK": decimal.RequireFromString("10.70"),
	"DKK": decimal.RequireFromString("6.90"),
	"PLN": decimal.RequireFromString("4.00"),
	"CZK": decimal.RequireFromString("23.20"),
	"HUF": decimal.RequireFromString("360.0"),
	"RON": decimal.RequireFromString("4.60"),
	"BGN": decimal.RequireFromString("1.80"),
	"BRL": decimal.RequireFromString("5.00"),
	"MXN": decimal.RequireFromString("17.10"),
	"INR": decimal.RequireFromString("83.20"),
	"KRW": decimal.RequireFromString("1330.0"),
	"TWD": decimal.RequireFromString("31.50"),
	"SGD": decimal.RequireFromString("1.34"),
	"HKD": decimal.RequireFromString("7.80"),
	"NZD": decimal.RequireFromString("1.64"),
	"TRY": decimal.RequireFromString("32.00"),
	"ZAR": decimal.RequireFromString("18.80"),
	"ILS": decimal.RequireFromString("3.70"),
	"AED": decimal.RequireFromString("3.67"),
	"SAR": decimal.RequireFromString("3.75"),
	"RUB": decimal.RequireFromString("92.00"),
}

// EstimateUSD converts amount to USD using the static table. The bool result
// reports whether the currency was known; unknown currencies return zero.
func EstimateUSD(amount decimal.Decimal, from string) (decimal.Decimal, bool) {
	rate, ok := staticUSDRates[normalizeCurrency(from)]
	if !ok || rate.IsZero() {
		return decimal.Zero, false
	}
	return RoundMoney(amount.DivRound(rate, 12)), true
}
