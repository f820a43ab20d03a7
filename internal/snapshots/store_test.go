package snapshots

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
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

func setupSnapshotsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS metrics_snapshots (
  id TEXT PRIMARY KEY,
  app_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  date DATETIME NOT NULL,
  active_subscribers INTEGER NOT NULL DEFAULT 0,
  trial_subscribers INTEGER NOT NULL DEFAULT 0,
  paid_subscribers INTEGER NOT NULL DEFAULT 0,
  monthly_subscribers INTEGER NOT NULL DEFAULT 0,
  yearly_subscribers INTEGER NOT NULL DEFAULT 0,
  first_payments INTEGER NOT NULL DEFAULT 0,
  renewals INTEGER NOT NULL DEFAULT 0,
  cancellations INTEGER NOT NULL DEFAULT 0,
  churn INTEGER NOT NULL DEFAULT 0,
  refunds INTEGER NOT NULL DEFAULT 0,
  will_cancel INTEGER NOT NULL DEFAULT 0,
  mrr TEXT NOT NULL DEFAULT '0',
  charged_revenue TEXT NOT NULL DEFAULT '0',
  charged_revenue_monthly TEXT NOT NULL DEFAULT '0',
  charged_revenue_yearly TEXT NOT NULL DEFAULT '0',
  revenue_excl_tax TEXT NOT NULL DEFAULT '0',
  revenue_excl_tax_monthly TEXT NOT NULL DEFAULT '0',
  revenue_excl_tax_yearly TEXT NOT NULL DEFAULT '0',
  proceeds TEXT NOT NULL DEFAULT '0',
  proceeds_monthly TEXT NOT NULL DEFAULT '0',
  proceeds_yearly TEXT NOT NULL DEFAULT '0',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM metrics_snapshots").Error)

	return db
}

func newTestStore(t *testing.T) (*Store, Repository) {
	t.Helper()
	repo := NewRepository(setupSnapshotsTestDB(t))
	store, err := NewStore(StoreParams{Repo: repo})
	require.NoError(t, err)
	return store, repo
}

func snapshotFixture(appID uuid.UUID, platform enums.Platform, date time.Time, active int) *models.MetricsSnapshot {
	return &models.MetricsSnapshot{
		ID:                uuid.New(),
		AppID:             appID,
		Platform:          platform,
		Date:              date,
		ActiveSubscribers: active,
		MRR:               decimal.RequireFromString("9.99"),
	}
}

var snapshotDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestUpsertInsertsThenOverwrites(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	appID := uuid.New()

	require.NoError(t, store.Upsert(ctx, snapshotFixture(appID, enums.PlatformStripe, snapshotDay, 10)))
	require.NoError(t, store.Upsert(ctx, snapshotFixture(appID, enums.PlatformStripe, snapshotDay, 12)))

	rows, err := repo.ListForKey(ctx, appID, enums.PlatformStripe, snapshotDay)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 12, rows[0].ActiveSubscribers)
}

func TestUpsertSelfHealsDuplicates(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	appID := uuid.New()

	// Seed duplicates directly, simulating the historical defect.
	require.NoError(t, repo.Create(ctx, snapshotFixture(appID, enums.PlatformAppStore, snapshotDay, 1)))
	require.NoError(t, repo.Create(ctx, snapshotFixture(appID, enums.PlatformAppStore, snapshotDay, 2)))
	require.NoError(t, repo.Create(ctx, snapshotFixture(appID, enums.PlatformAppStore, snapshotDay, 3)))

	require.NoError(t, store.Upsert(ctx, snapshotFixture(appID, enums.PlatformAppStore, snapshotDay, 99)))

	rows, err := repo.ListForKey(ctx, appID, enums.PlatformAppStore, snapshotDay)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 99, rows[0].ActiveSubscribers)
}

func TestRollupUnifiedSumsPlatforms(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	appID := uuid.New()

	stripeSnap := snapshotFixture(appID, enums.PlatformStripe, snapshotDay, 10)
	stripeSnap.Renewals = 2
	appstoreSnap := snapshotFixture(appID, enums.PlatformAppStore, snapshotDay, 5)
	appstoreSnap.Renewals = 1
	playSnap := snapshotFixture(appID, enums.PlatformGooglePlay, snapshotDay, 3)

	require.NoError(t, store.Upsert(ctx, stripeSnap))
	require.NoError(t, store.Upsert(ctx, appstoreSnap))
	require.NoError(t, store.Upsert(ctx, playSnap))
	require.NoError(t, store.RollupUnified(ctx, appID, snapshotDay))

	rows, err := repo.ListForKey(ctx, appID, enums.PlatformUnified, snapshotDay)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	unified := rows[0]
	assert.Equal(t, 18, unified.ActiveSubscribers)
	assert.Equal(t, 3, unified.Renewals)
	assert.Equal(t, "29.97", unified.MRR.StringFixed(2))
}

func TestRollupUnifiedIsIdempotent(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()
	appID := uuid.New()

	require.NoError(t, store.Upsert(ctx, snapshotFixture(appID, enums.PlatformStripe, snapshotDay, 10)))
	require.NoError(t, store.RollupUnified(ctx, appID, snapshotDay))
	require.NoError(t, store.RollupUnified(ctx, appID, snapshotDay))

	rows, err := repo.ListForKey(ctx, appID, enums.PlatformUnified, snapshotDay)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].ActiveSubscribers)
}
