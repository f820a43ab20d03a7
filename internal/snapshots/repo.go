package snapshots

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Repository handles metrics snapshot persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListForKey(ctx context.Context, appID uuid.UUID, platform enums.Platform, date time.Time) ([]models.MetricsSnapshot, error)
	ListForDate(ctx context.Context, appID uuid.UUID, date time.Time) ([]models.MetricsSnapshot, error)
	ListRange(ctx context.Context, appID uuid.UUID, platform enums.Platform, from, to time.Time) ([]models.MetricsSnapshot, error)
	Create(ctx context.Context, snapshot *models.MetricsSnapshot) error
	Update(ctx context.Context, snapshot *models.MetricsSnapshot) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a snapshot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListForKey(ctx context.Context, appID uuid.UUID, platform enums.Platform, date time.Time) ([]models.MetricsSnapshot, error) {
	var rows []models.MetricsSnapshot
	if err := r.db.WithContext(ctx).
		Where("app_id = ? AND platform = ? AND date = ?", appID, platform, dateOnly(date)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForDate(ctx context.Context, appID uuid.UUID, date time.Time) ([]models.MetricsSnapshot, error) {
	var rows []models.MetricsSnapshot
	if err := r.db.WithContext(ctx).
		Where("app_id = ? AND date = ?", appID, dateOnly(date)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListRange(ctx context.Context, appID uuid.UUID, platform enums.Platform, from, to time.Time) ([]models.MetricsSnapshot, error) {
	var rows []models.MetricsSnapshot
	query := r.db.WithContext(ctx).
		Where("app_id = ? AND date >= ? AND date <= ?", appID, dateOnly(from), dateOnly(to))
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if err := query.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Create(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) Update(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	return r.db.WithContext(ctx).Save(snapshot).Error
}

func (r *repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&models.MetricsSnapshot{}, "id IN ?", ids).Error
}

func dateOnly(ts time.Time) time.Time {
	return ts.UTC().Truncate(24 * time.Hour)
}
