package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestVATRateLookup(t *testing.T) {
	rate, ok := VATRate("DE")
	assert.True(t, ok)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.19")))

	rate, ok = VATRate("de")
	assert.True(t, ok, "lookup is case insensitive")
	assert.True(t, rate.Equal(decimal.RequireFromString("0.19")))

	_, ok = VATRate("XX")
	assert.False(t, ok)
}

func TestRevenueExcludingVAT(t *testing.T) {
	gross := decimal.RequireFromString("119")

	net := RevenueExcludingVAT(gross, "DE")
	assert.True(t, net.Equal(decimal.RequireFromString("100")), "got %s", net)

	assert.True(t, RevenueExcludingVAT(gross, "XX").Equal(gross),
		"unknown country leaves the amount untouched")
}

func TestRevenueExcludingVATNeverExceedsGross(t *testing.T) {
	gross := decimal.RequireFromString("49.99")
	for country := range vatRates {
		net := RevenueExcludingVAT(gross, country)
		assert.True(t, net.LessThanOrEqual(gross), "country %s", country)
		assert.True(t, net.Sign() > 0, "country %s", country)
	}
}
