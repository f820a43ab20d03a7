package controllers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/api/responses"
	"github.com/revlytic/revlytic-backend/api/validators"
	"github.com/revlytic/revlytic-backend/internal/currency"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

var yearMonthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// rateUpsertRequest is the payload the external rate-fetch job posts.
type rateUpsertRequest struct {
	FromCurrency string  `json:"from_currency" validate:"required,len=3"`
	ToCurrency   string  `json:"to_currency" validate:"required,len=3"`
	Rate         string  `json:"rate" validate:"required"`
	YearMonth    *string `json:"year_month,omitempty"`
}

// RateRecord stores a new exchange rate observation.
func RateRecord(repo currency.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input rateUpsertRequest
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := decimal.NewFromString(input.Rate)
		if err != nil || rate.Sign() <= 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "rate must be a positive decimal"))
			return
		}
		if input.YearMonth != nil && !yearMonthPattern.MatchString(*input.YearMonth) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "year_month must be YYYY-MM"))
			return
		}

		record := &models.ExchangeRate{
			ID:           uuid.New(),
			FromCurrency: strings.ToUpper(input.FromCurrency),
			ToCurrency:   strings.ToUpper(input.ToCurrency),
			Rate:         rate,
			YearMonth:    input.YearMonth,
		}
		if err := repo.RecordRate(r.Context(), record); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording exchange rate"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// RateEstimate converts an amount to USD using the static display
// table. Rough by design: dashboards use it to sort mixed-currency
// figures, never to produce stored numbers.
func RateEstimate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("currency")))
		if len(from) != 3 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "currency must be a 3-letter code"))
			return
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(r.URL.Query().Get("amount")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal"))
			return
		}

		usd, ok := currency.EstimateUSD(amount, from)
		if !ok {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeRateNotFound, "no static estimate for this currency").
					WithDetails(map[string]string{"currency": from}))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"currency": from,
			"amount":   amount,
			"usd":      usd,
		})
	}
}

// RateList returns the most recently recorded rates.
func RateList(repo currency.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rates, err := repo.ListRates(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing exchange rates"))
			return
		}
		responses.WriteSuccess(w, rates)
	}
}
