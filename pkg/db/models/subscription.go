package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Subscription is one platform-native subscription instance. Rows are
// created on first sighting during ingestion and refreshed in place on
// every subsequent ingestion; they are never deleted outside explicit
// data resets.
type Subscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppID         uuid.UUID                `gorm:"column:app_id;type:uuid;not null;uniqueIndex:idx_subscriptions_app_platform_external"`
	Platform      enums.Platform           `gorm:"column:platform;not null;uniqueIndex:idx_subscriptions_app_platform_external"`
	ExternalID    string                   `gorm:"column:external_id;not null;uniqueIndex:idx_subscriptions_app_platform_external"`
	CustomerID    *string                  `gorm:"column:customer_id"`
	Status        enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	ProductID     string                   `gorm:"column:product_id"`
	StartDate     time.Time                `gorm:"column:start_date;not null"`
	EndDate       *time.Time               `gorm:"column:end_date"`
	IsTrial       bool                     `gorm:"column:is_trial;not null;default:false"`
	WillCancel    bool                     `gorm:"column:will_cancel;not null;default:false"`
	TrialEnd      *time.Time               `gorm:"column:trial_end"`
	PriceAmount   int64                    `gorm:"column:price_amount;not null;default:0"`
	PriceInterval enums.PriceInterval      `gorm:"column:price_interval;not null;default:'month'"`
	PriceCurrency string                   `gorm:"column:price_currency;not null;default:'USD'"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveOn reports whether the subscription counts as active for the
// given day window: started on or before dayEnd and not ended before
// the day began.
func (s Subscription) ActiveOn(dayStart, dayEnd time.Time) bool {
	if s.StartDate.After(dayEnd) {
		return false
	}
	if s.EndDate == nil {
		return true
	}
	return s.EndDate.After(dayStart)
}

// TrialOn reports whether the subscription is in trial for the day.
func (s Subscription) TrialOn(dayStart, dayEnd time.Time) bool {
	if !s.ActiveOn(dayStart, dayEnd) {
		return false
	}
	if s.TrialEnd == nil {
		return s.IsTrial
	}
	return s.TrialEnd.After(dayStart)
}
