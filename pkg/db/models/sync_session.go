package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// SyncSession is the cancellable lease for one app-wide sync run. Only
// one session per app may be active; starting a new sync cancels any
// prior active session. Cancellation is cooperative: workers poll
// CancelRequested at chunk boundaries.
type SyncSession struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppID           uuid.UUID       `gorm:"column:app_id;type:uuid;not null;index"`
	State           enums.SyncState `gorm:"column:state;not null;default:'pending'"`
	CancelRequested bool            `gorm:"column:cancel_requested;not null;default:false"`
	StartedAt       *time.Time      `gorm:"column:started_at"`
	FinishedAt      *time.Time      `gorm:"column:finished_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
