package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncProgress is the checkpoint row for one in-flight historical
// backfill. It is created when the backfill starts, updated after every
// chunk, and deleted on completion or cancellation.
type SyncProgress struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConnectionID      uuid.UUID       `gorm:"column:connection_id;type:uuid;not null;uniqueIndex"`
	SessionID         uuid.UUID       `gorm:"column:session_id;type:uuid;not null;index"`
	StartDate         time.Time       `gorm:"column:start_date;type:date;not null"`
	EndDate           time.Time       `gorm:"column:end_date;type:date;not null"`
	ChunkSize         int             `gorm:"column:chunk_size;not null"`
	ChunkIndex        int             `gorm:"column:chunk_index;not null;default:0"`
	TotalDays         int             `gorm:"column:total_days;not null"`
	ProcessedDays     int             `gorm:"column:processed_days;not null;default:0"`
	LastProcessedDate *time.Time      `gorm:"column:last_processed_date;type:date"`
	Credentials       json.RawMessage `gorm:"column:credentials;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalChunks returns how many chunks the configured range splits into.
func (p SyncProgress) TotalChunks() int {
	if p.ChunkSize <= 0 {
		return 0
	}
	return (p.TotalDays + p.ChunkSize - 1) / p.ChunkSize
}

// Percentage reports backfill completion in whole percent.
func (p SyncProgress) Percentage() int {
	if p.TotalDays <= 0 {
		return 0
	}
	pct := p.ProcessedDays * 100 / p.TotalDays
	if pct > 100 {
		pct = 100
	}
	return pct
}
