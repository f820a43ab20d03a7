package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// RateSource is the lookup surface the converter needs from the repository.
type RateSource interface {
	FindRate(ctx context.Context, from, to string, yearMonth *string) (*models.ExchangeRate, error)
}

// Converter resolves conversion rates between currencies using stored
// exchange rates, falling back through inverse and USD two-hop lookups.
type Converter struct {
	rates  RateSource
	logger *logger.Logger
}

// ConverterParams wires the converter's dependencies.
type ConverterParams struct {
	Rates  RateSource
	Logger *logger.Logger
}

// NewConverter validates dependencies and builds a Converter.
func NewConverter(params ConverterParams) (*Converter, error) {
	if params.Rates == nil {
		return nil, fmt.Errorf("currency converter requires a rate source")
	}
	return &Converter{rates: params.Rates, logger: params.Logger}, nil
}

// Convert converts amount from one currency to another, rounded to two
// decimal places with half-up semantics. asOfMonth ("2025-03") selects the
// rate in effect during that month when historical rates are stored.
//
// Resolution order: identity, direct rate, inverse rate, then a two-hop
// conversion through USD. When no path resolves the call fails with a
// RateNotFound error rather than assuming a 1:1 rate.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOfMonth *string) (decimal.Decimal, error) {
	from = normalizeCurrency(from)
	to = normalizeCurrency(to)
	if from == "" || to == "" {
		return decimal.Zero, errors.New(errors.CodeValidation, "currency codes are required")
	}
	if from == to {
		return RoundMoney(amount), nil
	}

	rate, err := c.resolveRate(ctx, from, to, asOfMonth)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundMoney(amount.Mul(rate)), nil
}

func (c *Converter) resolveRate(ctx context.Context, from, to string, asOfMonth *string) (decimal.Decimal, error) {
	direct, err := c.rates.FindRate(ctx, from, to, asOfMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if direct != nil && direct.Rate.IsPositive() {
		return direct.Rate, nil
	}

	inverse, err := c.rates.FindRate(ctx, to, from, asOfMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if inverse != nil && inverse.Rate.IsPositive() {
		return decimal.NewFromInt(1).DivRound(inverse.Rate, 12), nil
	}

	if from != baseCurrency && to != baseCurrency {
		toUSD, err := c.resolveLeg(ctx, from, baseCurrency, asOfMonth)
		if err != nil {
			return decimal.Zero, err
		}
		fromUSD, err := c.resolveLeg(ctx, baseCurrency, to, asOfMonth)
		if err != nil {
			return decimal.Zero, err
		}
		if !toUSD.IsZero() && !fromUSD.IsZero() {
			return toUSD.Mul(fromUSD), nil
		}
	}

	return decimal.Zero, errors.New(
		errors.CodeRateNotFound,
		fmt.Sprintf("no exchange rate available for %s to %s", from, to),
	).WithDetails(map[string]string{"from": from, "to": to})
}

// resolveLeg resolves one hop of a two-hop conversion, returning zero when
// neither a direct nor inverse rate exists for the leg.
func (c *Converter) resolveLeg(ctx context.Context, from, to string, asOfMonth *string) (decimal.Decimal, error) {
	direct, err := c.rates.FindRate(ctx, from, to, asOfMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if direct != nil && direct.Rate.IsPositive() {
		return direct.Rate, nil
	}
	inverse, err := c.rates.FindRate(ctx, to, from, asOfMonth)
	if err != nil {
		return decimal.Zero, err
	}
	if inverse != nil && inverse.Rate.IsPositive() {
		return decimal.NewFromInt(1).DivRound(inverse.Rate, 12), nil
	}
	return decimal.Zero, nil
}

// RoundMoney rounds to two decimal places with half-up semantics, matching
// floor(x*100 + 0.5) / 100.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	half := decimal.New(5, -1)
	return amount.Shift(2).Add(half).Floor().Shift(-2)
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
