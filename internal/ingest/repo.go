package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Repository handles subscription and revenue event persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSubscription(ctx context.Context, appID uuid.UUID, platform enums.Platform, externalID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptions(ctx context.Context, appID uuid.UUID, platform enums.Platform) ([]models.Subscription, error)
	FindEvent(ctx context.Context, subscriptionID uuid.UUID, occurredAt time.Time, amount decimal.Decimal) (*models.RevenueEvent, error)
	CreateEvent(ctx context.Context, event *models.RevenueEvent) error
	UpdateEvent(ctx context.Context, event *models.RevenueEvent) error
	ListEventsInRange(ctx context.Context, appID uuid.UUID, platform enums.Platform, from, to time.Time) ([]models.RevenueEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an ingestion repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSubscription(ctx context.Context, appID uuid.UUID, platform enums.Platform, externalID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND platform = ? AND external_id = ?", appID, platform, externalID).
		First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) ListSubscriptions(ctx context.Context, appID uuid.UUID, platform enums.Platform) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("app_id = ? AND platform = ?", appID, platform).
		Order("start_date ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) FindEvent(ctx context.Context, subscriptionID uuid.UUID, occurredAt time.Time, amount decimal.Decimal) (*models.RevenueEvent, error) {
	var event models.RevenueEvent
	err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND occurred_at = ? AND amount = ?", subscriptionID, occurredAt, amount).
		First(&event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) CreateEvent(ctx context.Context, event *models.RevenueEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) UpdateEvent(ctx context.Context, event *models.RevenueEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

func (r *repository) ListEventsInRange(ctx context.Context, appID uuid.UUID, platform enums.Platform, from, to time.Time) ([]models.RevenueEvent, error) {
	var events []models.RevenueEvent
	if err := r.db.WithContext(ctx).
		Where("app_id = ? AND platform = ? AND occurred_at >= ? AND occurred_at < ?", appID, platform, from, to).
		Order("occurred_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
