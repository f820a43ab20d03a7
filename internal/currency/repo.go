package currency

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
)

// Repository handles exchange rate persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	RecordRate(ctx context.Context, rate *models.ExchangeRate) error
	FindRate(ctx context.Context, from, to string, yearMonth *string) (*models.ExchangeRate, error)
	ListRates(ctx context.Context, limit int) ([]models.ExchangeRate, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an exchange rate repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) RecordRate(ctx context.Context, rate *models.ExchangeRate) error {
	if rate.RecordedAt.IsZero() {
		rate.RecordedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(rate).Error
}

// FindRate returns the best stored rate for the pair. A rate tagged with the
// requested year-month wins over untagged rates; within a tag bucket the most
// recently recorded rate wins.
func (r *repository) FindRate(ctx context.Context, from, to string, yearMonth *string) (*models.ExchangeRate, error) {
	if yearMonth != nil && *yearMonth != "" {
		var tagged models.ExchangeRate
		err := r.db.WithContext(ctx).
			Where("from_currency = ? AND to_currency = ? AND year_month = ?", from, to, *yearMonth).
			Order("recorded_at DESC").
			First(&tagged).Error
		if err == nil {
			return &tagged, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	var rate models.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("from_currency = ? AND to_currency = ?", from, to).
		Order("recorded_at DESC").
		First(&rate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

func (r *repository) ListRates(ctx context.Context, limit int) ([]models.ExchangeRate, error) {
	if limit <= 0 {
		limit = 250
	}
	var rates []models.ExchangeRate
	if err := r.db.WithContext(ctx).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}
