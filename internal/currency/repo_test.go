package currency

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
)

func setupRatesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS exchange_rates (
  id TEXT PRIMARY KEY,
  from_currency TEXT NOT NULL,
  to_currency TEXT NOT NULL,
  rate TEXT NOT NULL,
  year_month TEXT,
  recorded_at DATETIME NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM exchange_rates").Error)

	return db
}

func seedRate(t *testing.T, repo Repository, from, to, rate string, yearMonth *string, recordedAt time.Time) {
	t.Helper()
	require.NoError(t, repo.RecordRate(context.Background(), &models.ExchangeRate{
		ID:           uuid.New(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         decimal.RequireFromString(rate),
		YearMonth:    yearMonth,
		RecordedAt:   recordedAt,
	}))
}

func TestFindRatePrefersTaggedMonth(t *testing.T) {
	db := setupRatesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	march := "2025-03"
	now := time.Now().UTC()
	seedRate(t, repo, "EUR", "USD", "1.10", nil, now)
	seedRate(t, repo, "EUR", "USD", "1.05", &march, now.Add(-30*24*time.Hour))

	rate, err := repo.FindRate(ctx, "EUR", "USD", &march)
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("1.05")))
}

func TestFindRateFallsBackToLatest(t *testing.T) {
	db := setupRatesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	seedRate(t, repo, "EUR", "USD", "1.02", nil, now.Add(-48*time.Hour))
	seedRate(t, repo, "EUR", "USD", "1.10", nil, now)

	missingMonth := "2024-01"
	rate, err := repo.FindRate(ctx, "EUR", "USD", &missingMonth)
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("1.10")))
}

func TestFindRateMissingPairReturnsNil(t *testing.T) {
	db := setupRatesTestDB(t)
	repo := NewRepository(db)

	rate, err := repo.FindRate(context.Background(), "GBP", "JPY", nil)
	require.NoError(t, err)
	assert.Nil(t, rate)
}
