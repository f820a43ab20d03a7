package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/pkg/enums"
)

// Connection binds an app to one billing platform. Credentials is the
// opaque payload handed over by the integration layer (API key for the
// card processor, issuer/key/vendor identifiers plus a PEM private key
// for the app store, service-account JSON plus bucket for the
// Play store).
type Connection struct {
	ID           uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppID        uuid.UUID              `gorm:"column:app_id;type:uuid;not null;uniqueIndex:idx_connections_app_platform"`
	Platform     enums.Platform         `gorm:"column:platform;not null;uniqueIndex:idx_connections_app_platform"`
	Status       enums.ConnectionStatus `gorm:"column:status;not null;default:'disconnected'"`
	Credentials  json.RawMessage        `gorm:"column:credentials;type:jsonb"`
	LastSyncedAt *time.Time             `gorm:"column:last_synced_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
