package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/revlytic/revlytic-backend/internal/aggregate"
	"github.com/revlytic/revlytic-backend/internal/connections"
	"github.com/revlytic/revlytic-backend/internal/ingest"
	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/internal/snapshots"
	"github.com/revlytic/revlytic-backend/pkg/config"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
)

var syncNow = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func setupSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS apps (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  preferred_currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS connections (
  id TEXT PRIMARY KEY,
  app_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'disconnected',
  credentials TEXT,
  last_synced_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  app_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  external_id TEXT NOT NULL,
  customer_id TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  product_id TEXT,
  start_date DATETIME NOT NULL,
  end_date DATETIME,
  is_trial INTEGER NOT NULL DEFAULT 0,
  will_cancel INTEGER NOT NULL DEFAULT 0,
  trial_end DATETIME,
  price_amount INTEGER NOT NULL DEFAULT 0,
  price_interval TEXT NOT NULL DEFAULT 'month',
  price_currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS revenue_events (
  id TEXT PRIMARY KEY,
  app_id TEXT NOT NULL,
  platform TEXT NOT NULL,
  subscription_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  amount TEXT NOT NULL,
  amount_excluding_tax TEXT,
  amount_proceeds TEXT,
  currency TEXT NOT NULL,
  country TEXT,
  occurred_at DATETIME NOT NULL,
  external_id TEXT,
  created_at DATETIME
);
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
);
CREATE TABLE IF NOT EXISTS sync_sessions (
  id TEXT PRIMARY KEY,
  app_id TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT 'pending',
  cancel_requested INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME,
  finished_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS sync_progress (
  id TEXT PRIMARY KEY,
  connection_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  chunk_size INTEGER NOT NULL,
  chunk_index INTEGER NOT NULL DEFAULT 0,
  total_days INTEGER NOT NULL,
  processed_days INTEGER NOT NULL DEFAULT 0,
  last_processed_date DATETIME,
  credentials TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS sync_logs (
  id TEXT PRIMARY KEY,
  connection_id TEXT NOT NULL,
  level TEXT NOT NULL DEFAULT 'info',
  message TEXT NOT NULL,
  tags TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	for _, table := range []string{
		"apps", "connections", "subscriptions", "revenue_events",
		"metrics_snapshots", "sync_sessions", "sync_progress", "sync_logs",
	} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

type identityConverter struct{}

func (identityConverter) Convert(_ context.Context, amount decimal.Decimal, _, _ string, _ *string) (decimal.Decimal, error) {
	return amount, nil
}

// stubSource returns a canned batch and can run a hook before each
// fetch to simulate outside activity like a cancel request.
type stubSource struct {
	platform   enums.Platform
	result     FetchResult
	err        error
	calls      int
	beforeCall func(calls int)
}

func (s *stubSource) Platform() enums.Platform { return s.platform }

func (s *stubSource) FetchRange(_ context.Context, _ *models.Connection, _ string, _, _ time.Time) (FetchResult, error) {
	s.calls++
	if s.beforeCall != nil {
		s.beforeCall(s.calls)
	}
	if s.err != nil {
		return FetchResult{}, s.err
	}
	return s.result, nil
}

type syncHarness struct {
	db       *gorm.DB
	repo     Repository
	sessions *SessionManager
	connSvc  *connections.Service
	store    *snapshots.Store
	app      *models.App
}

func newSyncHarness(t *testing.T) *syncHarness {
	t.Helper()
	db := setupSyncTestDB(t)

	repo := NewRepository(db)
	sessions, err := NewSessionManager(SessionManagerParams{Repo: repo, Now: func() time.Time { return syncNow }})
	require.NoError(t, err)

	connSvc, err := connections.NewService(connections.ServiceParams{
		Repo: connections.NewRepository(db),
		Now:  func() time.Time { return syncNow },
	})
	require.NoError(t, err)

	store, err := snapshots.NewStore(snapshots.StoreParams{Repo: snapshots.NewRepository(db)})
	require.NoError(t, err)

	app, err := connSvc.CreateApp(context.Background(), connections.CreateAppInput{Name: "Revlytic Demo"})
	require.NoError(t, err)

	return &syncHarness{db: db, repo: repo, sessions: sessions, connSvc: connSvc, store: store, app: app}
}

func (h *syncHarness) connect(t *testing.T, platform enums.Platform) *models.Connection {
	t.Helper()
	payload := map[enums.Platform]string{
		enums.PlatformStripe:     `{"api_key":"sk_test_abc"}`,
		enums.PlatformGooglePlay: `{"service_account_json":"{}","bucket":"reports"}`,
		enums.PlatformAppStore:   `{"issuer_id":"i","key_id":"k","vendor_number":"v","private_key":"p"}`,
	}
	conn, err := h.connSvc.Connect(context.Background(), h.app.ID, connections.ConnectInput{
		Platform:    platform,
		Credentials: json.RawMessage(payload[platform]),
	})
	require.NoError(t, err)
	return conn
}

func (h *syncHarness) orchestrator(t *testing.T, sources ...Source) *Orchestrator {
	t.Helper()

	ingestRepo := ingest.NewRepository(h.db)
	ingestor, err := ingest.NewService(ingest.ServiceParams{Repo: ingestRepo})
	require.NoError(t, err)

	aggregator, err := aggregate.NewAggregator(aggregate.AggregatorParams{
		Converter:   identityConverter{},
		PlatformFee: 0.15,
	})
	require.NoError(t, err)

	syncLog, err := NewLogger(LoggerParams{Repo: h.repo})
	require.NoError(t, err)

	orch, err := NewOrchestrator(OrchestratorParams{
		Repo:        h.repo,
		Sessions:    h.sessions,
		Connections: h.connSvc,
		Ingestor:    ingestor,
		IngestRepo:  ingestRepo,
		Aggregator:  aggregator,
		Store:       h.store,
		Sources:     sources,
		SyncLog:     syncLog,
		Config: config.SyncConfig{
			ChunkSizeDays:   2,
			HorizonDays:     4,
			CancelCheckDays: 1,
		},
		Now: func() time.Time { return syncNow },
	})
	require.NoError(t, err)
	return orch
}

func stubBatch() reports.Batch {
	start := syncNow.AddDate(0, 0, -9)
	return reports.Batch{
		FlowsReliable: true,
		Subscriptions: []reports.Subscription{{
			ExternalID:    "sub-1",
			Status:        enums.SubscriptionStatusActive,
			StartDate:     start,
			PriceAmount:   999,
			PriceInterval: enums.PriceIntervalMonth,
			PriceCurrency: "USD",
		}},
		Events: []reports.RevenueEvent{{
			SubscriptionExternalID: "sub-1",
			Type:                   enums.RevenueEventTypeRenewal,
			Amount:                 decimal.RequireFromString("9.99"),
			Currency:               "USD",
			OccurredAt:             syncNow.AddDate(0, 0, -3),
		}},
	}
}

func TestOrchestratorCompletesSession(t *testing.T) {
	h := newSyncHarness(t)
	conn := h.connect(t, enums.PlatformStripe)
	source := &stubSource{platform: enums.PlatformStripe, result: FetchResult{Batch: stubBatch()}}
	orch := h.orchestrator(t, source)
	ctx := context.Background()

	session, err := h.sessions.Start(ctx, h.app.ID)
	require.NoError(t, err)
	require.NoError(t, orch.Run(ctx, session.ID))

	stored, err := h.repo.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStateCompleted, stored.State)
	assert.NotNil(t, stored.FinishedAt)

	// 4-day horizon over 2-day chunks means two fetches.
	assert.Equal(t, 2, source.calls)

	from := syncNow.AddDate(0, 0, -4)
	rows, err := h.store.Query(ctx, h.app.ID, enums.PlatformStripe, from, syncNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, 1, row.ActiveSubscribers, "date %s", row.Date)
		assert.Equal(t, "9.99", row.MRR.StringFixed(2))
	}

	unified, err := h.store.Query(ctx, h.app.ID, enums.PlatformUnified, from, syncNow.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Len(t, unified, 4)

	progress, err := h.repo.ListProgressBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, progress, "checkpoints must be deleted on completion")

	logs, err := h.repo.ListLogs(ctx, conn.ID, 10)
	require.NoError(t, err)
	var success bool
	for _, entry := range logs {
		if entry.Level == enums.SyncLogLevelSuccess {
			success = true
		}
	}
	assert.True(t, success, "a success log entry is expected")

	refreshed, err := h.connSvc.ListConnections(ctx, h.app.ID)
	require.NoError(t, err)
	require.Len(t, refreshed, 1)
	assert.NotNil(t, refreshed[0].LastSyncedAt)
}

func TestOrchestratorStopsAtCancelRequest(t *testing.T) {
	h := newSyncHarness(t)
	h.connect(t, enums.PlatformStripe)
	ctx := context.Background()

	var sessionID string
	source := &stubSource{
		platform: enums.PlatformStripe,
		result:   FetchResult{Batch: stubBatch()},
	}
	source.beforeCall = func(calls int) {
		if calls == 1 {
			// Raise the flag while the first chunk is in flight.
			require.NoError(t,
				h.db.Exec("UPDATE sync_sessions SET cancel_requested = 1 WHERE id = ?", sessionID).Error)
		}
	}
	orch := h.orchestrator(t, source)

	session, err := h.sessions.Start(ctx, h.app.ID)
	require.NoError(t, err)
	sessionID = session.ID.String()

	require.NoError(t, orch.Run(ctx, session.ID))

	stored, err := h.repo.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStateCancelled, stored.State)
	assert.Equal(t, 1, source.calls, "second chunk must not start after cancel")

	progress, err := h.repo.ListProgressBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, progress, "checkpoints must be deleted on cancel")

	unified, err := h.store.Query(ctx, h.app.ID, enums.PlatformUnified, syncNow.AddDate(0, 0, -4), syncNow)
	require.NoError(t, err)
	assert.Empty(t, unified, "cancelled sessions do not roll up")
}

func TestOrchestratorIsolatesPlatformFailures(t *testing.T) {
	h := newSyncHarness(t)
	stripeConn := h.connect(t, enums.PlatformStripe)
	h.connect(t, enums.PlatformGooglePlay)
	ctx := context.Background()

	failing := &stubSource{platform: enums.PlatformStripe, err: assert.AnError}
	healthy := &stubSource{platform: enums.PlatformGooglePlay, result: FetchResult{Batch: stubBatch()}}
	orch := h.orchestrator(t, failing, healthy)

	session, err := h.sessions.Start(ctx, h.app.ID)
	require.NoError(t, err)
	require.NoError(t, orch.Run(ctx, session.ID))

	stored, err := h.repo.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStateCompleted, stored.State)
	assert.Equal(t, 2, healthy.calls, "healthy platform must run despite the failure")

	conns, err := h.connSvc.ListConnections(ctx, h.app.ID)
	require.NoError(t, err)
	statuses := map[enums.Platform]enums.ConnectionStatus{}
	for _, c := range conns {
		statuses[c.Platform] = c.Status
	}
	assert.Equal(t, enums.ConnectionStatusError, statuses[enums.PlatformStripe])
	assert.Equal(t, enums.ConnectionStatusConnected, statuses[enums.PlatformGooglePlay])

	logs, err := h.repo.ListLogs(ctx, stripeConn.ID, 10)
	require.NoError(t, err)
	var failed bool
	for _, entry := range logs {
		if entry.Level == enums.SyncLogLevelError {
			failed = true
		}
	}
	assert.True(t, failed, "an error log entry is expected for the failed platform")
}

func TestOrchestratorFlagsZeroProcessedDays(t *testing.T) {
	h := newSyncHarness(t)
	conn := h.connect(t, enums.PlatformAppStore)
	// Every chunk comes back fully skipped: nothing published yet.
	source := &stubSource{platform: enums.PlatformAppStore, result: FetchResult{SkippedDays: 2}}
	orch := h.orchestrator(t, source)
	ctx := context.Background()

	session, err := h.sessions.Start(ctx, h.app.ID)
	require.NoError(t, err)
	require.NoError(t, orch.Run(ctx, session.ID))

	logs, err := h.repo.ListLogs(ctx, conn.ID, 10)
	require.NoError(t, err)
	var errored bool
	for _, entry := range logs {
		if entry.Level == enums.SyncLogLevelError {
			errored = true
		}
	}
	assert.True(t, errored, "zero processed days must produce an error-level entry")

	stored, err := h.repo.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStateCompleted, stored.State, "the session itself still completes")
}
