package models

import (
	"time"

	"github.com/google/uuid"
)

// App is the tenant unit all billing data hangs off. PreferredCurrency
// is the base currency every monetary figure is converted into.
type App struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string    `gorm:"column:name;not null"`
	PreferredCurrency string    `gorm:"column:preferred_currency;not null;default:'USD'"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
