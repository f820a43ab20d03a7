package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Repository persists sync sessions, backfill checkpoints, and the
// per-connection diagnostic log stream.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSession(ctx context.Context, session *models.SyncSession) error
	UpdateSession(ctx context.Context, session *models.SyncSession) error
	FindSession(ctx context.Context, id uuid.UUID) (*models.SyncSession, error)
	FindActiveSession(ctx context.Context, appID uuid.UUID) (*models.SyncSession, error)
	ListPendingSessions(ctx context.Context) ([]models.SyncSession, error)

	CreateProgress(ctx context.Context, progress *models.SyncProgress) error
	UpdateProgress(ctx context.Context, progress *models.SyncProgress) error
	FindProgressByConnection(ctx context.Context, connectionID uuid.UUID) (*models.SyncProgress, error)
	ListProgressBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SyncProgress, error)
	DeleteProgress(ctx context.Context, id uuid.UUID) error
	DeleteProgressBySession(ctx context.Context, sessionID uuid.UUID) error

	CreateLog(ctx context.Context, entry *models.SyncLog) error
	ListLogs(ctx context.Context, connectionID uuid.UUID, limit int) ([]models.SyncLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sync repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSession(ctx context.Context, session *models.SyncSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) UpdateSession(ctx context.Context, session *models.SyncSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *repository) FindSession(ctx context.Context, id uuid.UUID) (*models.SyncSession, error) {
	var session models.SyncSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindActiveSession(ctx context.Context, appID uuid.UUID) (*models.SyncSession, error) {
	var session models.SyncSession
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND state IN ?", appID, []enums.SyncState{enums.SyncStatePending, enums.SyncStateRunning}).
		Order("created_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListPendingSessions(ctx context.Context) ([]models.SyncSession, error) {
	var sessions []models.SyncSession
	err := r.db.WithContext(ctx).
		Where("state = ? AND cancel_requested = ?", enums.SyncStatePending, false).
		Order("created_at ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *repository) CreateProgress(ctx context.Context, progress *models.SyncProgress) error {
	return r.db.WithContext(ctx).Create(progress).Error
}

func (r *repository) UpdateProgress(ctx context.Context, progress *models.SyncProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}

func (r *repository) FindProgressByConnection(ctx context.Context, connectionID uuid.UUID) (*models.SyncProgress, error) {
	var progress models.SyncProgress
	err := r.db.WithContext(ctx).First(&progress, "connection_id = ?", connectionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *repository) ListProgressBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SyncProgress, error) {
	var rows []models.SyncProgress
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteProgress(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SyncProgress{}, "id = ?", id).Error
}

func (r *repository) DeleteProgressBySession(ctx context.Context, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SyncProgress{}, "session_id = ?", sessionID).Error
}

func (r *repository) CreateLog(ctx context.Context, entry *models.SyncLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListLogs(ctx context.Context, connectionID uuid.UUID, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.SyncLog
	err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// dayStart truncates to midnight UTC, the granularity every checkpoint
// and snapshot works at.
func dayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
