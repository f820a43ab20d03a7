package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeRate is one observed conversion rate for a currency pair.
// YearMonth ("2025-03") tags historical rates so conversions can use
// the rate in effect during the month a transaction happened.
type ExchangeRate struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FromCurrency string          `gorm:"column:from_currency;not null;index:idx_exchange_rates_pair"`
	ToCurrency   string          `gorm:"column:to_currency;not null;index:idx_exchange_rates_pair"`
	Rate         decimal.Decimal `gorm:"column:rate;type:numeric(18,8);not null"`
	YearMonth    *string         `gorm:"column:year_month;index"`
	RecordedAt   time.Time       `gorm:"column:recorded_at;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
