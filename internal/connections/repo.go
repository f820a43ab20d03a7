package connections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Repository handles app and connection persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateApp(ctx context.Context, app *models.App) error
	FindApp(ctx context.Context, id uuid.UUID) (*models.App, error)
	UpdateApp(ctx context.Context, app *models.App) error
	ListApps(ctx context.Context) ([]models.App, error)
	CreateConnection(ctx context.Context, conn *models.Connection) error
	UpdateConnection(ctx context.Context, conn *models.Connection) error
	FindConnection(ctx context.Context, appID uuid.UUID, platform enums.Platform) (*models.Connection, error)
	FindConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	ListConnections(ctx context.Context, appID uuid.UUID) ([]models.Connection, error)
	DeleteConnection(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a connection repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateApp(ctx context.Context, app *models.App) error {
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *repository) FindApp(ctx context.Context, id uuid.UUID) (*models.App, error) {
	var app models.App
	if err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

func (r *repository) UpdateApp(ctx context.Context, app *models.App) error {
	return r.db.WithContext(ctx).Save(app).Error
}

func (r *repository) ListApps(ctx context.Context) ([]models.App, error) {
	var apps []models.App
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repository) CreateConnection(ctx context.Context, conn *models.Connection) error {
	return r.db.WithContext(ctx).Create(conn).Error
}

func (r *repository) UpdateConnection(ctx context.Context, conn *models.Connection) error {
	return r.db.WithContext(ctx).Save(conn).Error
}

func (r *repository) FindConnection(ctx context.Context, appID uuid.UUID, platform enums.Platform) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND platform = ?", appID, platform).
		First(&conn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *repository) FindConnectionByID(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	var conn models.Connection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *repository) ListConnections(ctx context.Context, appID uuid.UUID) ([]models.Connection, error) {
	var conns []models.Connection
	if err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at ASC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *repository) DeleteConnection(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Connection{}, "id = ?", id).Error
}

// TouchLastSynced stamps a connection's last successful sync time.
func TouchLastSynced(conn *models.Connection, at time.Time) {
	ts := at.UTC()
	conn.LastSyncedAt = &ts
}
