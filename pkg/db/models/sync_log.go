package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// SyncLog is one timestamped entry in the diagnostic stream the
// dashboard renders for a connection's sync runs.
type SyncLog struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConnectionID uuid.UUID          `gorm:"column:connection_id;type:uuid;not null;index"`
	Level        enums.SyncLogLevel `gorm:"column:level;not null;default:'info'"`
	Message      string             `gorm:"column:message;not null"`
	Tags         pq.StringArray     `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
