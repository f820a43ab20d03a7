package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// RevenueEvent is one monetary transaction (payment, renewal, refund).
// Two events with identical (subscription, occurred_at, amount) are the
// same economic event seen twice; ingestion deduplicates on that key.
// AmountProceeds may be filled in later by reprocessing but is never
// overwritten once set.
type RevenueEvent struct {
	ID                 uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppID              uuid.UUID              `gorm:"column:app_id;type:uuid;not null;index"`
	Platform           enums.Platform         `gorm:"column:platform;not null"`
	SubscriptionID     uuid.UUID              `gorm:"column:subscription_id;type:uuid;not null;index:idx_revenue_events_dedup"`
	EventType          enums.RevenueEventType `gorm:"column:event_type;not null"`
	Amount             decimal.Decimal        `gorm:"column:amount;type:numeric(14,2);not null"`
	AmountExcludingTax decimal.NullDecimal    `gorm:"column:amount_excluding_tax;type:numeric(14,2)"`
	AmountProceeds     decimal.NullDecimal    `gorm:"column:amount_proceeds;type:numeric(14,2)"`
	Currency           string                 `gorm:"column:currency;not null"`
	Country            *string                `gorm:"column:country"`
	OccurredAt         time.Time              `gorm:"column:occurred_at;not null;index:idx_revenue_events_dedup"`
	ExternalID         *string                `gorm:"column:external_id"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
}
