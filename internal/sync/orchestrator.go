package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/internal/aggregate"
	"github.com/revlytic/revlytic-backend/internal/connections"
	"github.com/revlytic/revlytic-backend/internal/ingest"
	"github.com/revlytic/revlytic-backend/internal/reports"
	"github.com/revlytic/revlytic-backend/internal/snapshots"
	"github.com/revlytic/revlytic-backend/pkg/config"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
	"github.com/revlytic/revlytic-backend/pkg/metrics"
)

// Orchestrator drives one sync session end to end: it walks each
// connected platform in fixed order, pulls report data in date chunks,
// ingests and aggregates it into daily snapshots, and rolls the
// platforms up into the unified series when everything is done.
//
// Cancellation is cooperative. The session's cancel flag is re-read at
// every chunk boundary and periodically inside the per-day loop, so a
// cancel lands within a bounded amount of work.
type Orchestrator struct {
	repo       Repository
	sessions   *SessionManager
	conns      *connections.Service
	ingestor   *ingest.Service
	ingestRepo ingest.Repository
	aggregator *aggregate.Aggregator
	store      *snapshots.Store
	sources    []Source
	syncLog    *Logger
	metrics    *metrics.SyncMetrics
	cfg        config.SyncConfig
	logg       *logger.Logger
	now        func() time.Time
}

// OrchestratorParams configure an Orchestrator.
type OrchestratorParams struct {
	Repo        Repository
	Sessions    *SessionManager
	Connections *connections.Service
	Ingestor    *ingest.Service
	IngestRepo  ingest.Repository
	Aggregator  *aggregate.Aggregator
	Store       *snapshots.Store
	Sources     []Source
	SyncLog     *Logger
	Metrics     *metrics.SyncMetrics
	Config      config.SyncConfig
	Logger      *logger.Logger
	Now         func() time.Time
}

// NewOrchestrator validates dependencies and builds an Orchestrator.
func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync repository required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	if params.Connections == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "connections service required")
	}
	if params.Ingestor == nil || params.IngestRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ingest service and repository required")
	}
	if params.Aggregator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "aggregator required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "snapshot store required")
	}
	if len(params.Sources) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "at least one platform source required")
	}
	if params.SyncLog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	if cfg.ChunkSizeDays <= 0 {
		cfg.ChunkSizeDays = 30
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 365
	}
	if cfg.CancelCheckDays <= 0 {
		cfg.CancelCheckDays = 5
	}
	return &Orchestrator{
		repo:       params.Repo,
		sessions:   params.Sessions,
		conns:      params.Connections,
		ingestor:   params.Ingestor,
		ingestRepo: params.IngestRepo,
		aggregator: params.Aggregator,
		store:      params.Store,
		sources:    params.Sources,
		syncLog:    params.SyncLog,
		metrics:    params.Metrics,
		cfg:        cfg,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// Run executes the session to a terminal state. Platform failures are
// isolated: one platform erroring out never stops the others.
func (o *Orchestrator) Run(ctx context.Context, sessionID uuid.UUID) error {
	session, err := o.repo.FindSession(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sync session")
	}
	if session == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sync session not found")
	}
	if session.State != enums.SyncStatePending {
		return nil
	}
	ctx = o.withSessionContext(ctx, session)

	if session.CancelRequested {
		return o.finishSession(ctx, session, enums.SyncStateCancelled)
	}

	startedAt := o.now().UTC()
	session.State = enums.SyncStateRunning
	session.StartedAt = &startedAt
	if err := o.repo.UpdateSession(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking session running")
	}

	app, err := o.conns.GetApp(ctx, session.AppID)
	if err != nil {
		_ = o.finishSession(ctx, session, enums.SyncStateFailed)
		return err
	}
	connList, err := o.conns.ListConnections(ctx, session.AppID)
	if err != nil {
		_ = o.finishSession(ctx, session, enums.SyncStateFailed)
		return err
	}
	byPlatform := make(map[enums.Platform]*models.Connection, len(connList))
	for i := range connList {
		byPlatform[connList[i].Platform] = &connList[i]
	}

	to := dayStart(o.now())
	from := to.AddDate(0, 0, -o.cfg.HorizonDays)

	cancelled := false
	for _, source := range o.sources {
		conn, ok := byPlatform[source.Platform()]
		if !ok {
			continue
		}
		err := o.runPlatform(ctx, session, app, conn, source, from, to)
		if pkgerrors.HasCode(err, pkgerrors.CodeSyncCancelled) {
			cancelled = true
			break
		}
		if err != nil {
			o.observeFailure(ctx, conn, source.Platform(), err)
			continue
		}
		if err := o.conns.MarkSynced(ctx, conn.ID); err != nil && o.logg != nil {
			o.logg.Error(ctx, "stamping connection sync time", err)
		}
	}

	if cancelled {
		return o.finishSession(ctx, session, enums.SyncStateCancelled)
	}

	if err := o.store.RollupUnifiedRange(ctx, session.AppID, from, to); err != nil {
		_ = o.finishSession(ctx, session, enums.SyncStateFailed)
		return err
	}
	return o.finishSession(ctx, session, enums.SyncStateCompleted)
}

func (o *Orchestrator) runPlatform(ctx context.Context, session *models.SyncSession, app *models.App, conn *models.Connection, source Source, from, to time.Time) error {
	platform := source.Platform()
	if o.logg != nil {
		ctx = o.logg.WithPlatform(ctx, string(platform))
		ctx = o.logg.WithConnectionID(ctx, conn.ID.String())
	}

	progress, err := o.ensureProgress(ctx, session, conn, from, to)
	if err != nil {
		return err
	}
	chunks := SplitRange(progress.StartDate, progress.EndDate, progress.ChunkSize)

	o.syncLog.Info(ctx, conn.ID,
		fmt.Sprintf("sync started: %d days in %d chunks", progress.TotalDays, len(chunks)),
		"sync", string(platform))

	processed := 0
	skipped := 0
	var previous *models.MetricsSnapshot

	for i := progress.ChunkIndex; i < len(chunks); i++ {
		if err := o.checkCancel(ctx, session.ID); err != nil {
			return err
		}
		chunk := chunks[i]
		chunkStarted := o.now()

		result, err := source.FetchRange(ctx, conn, app.PreferredCurrency, chunk.Start, chunk.End)
		if err != nil {
			return err
		}
		ingested, err := o.ingestor.IngestBatch(ctx, session.AppID, platform, result.Batch)
		if err != nil {
			return err
		}

		if previous == nil {
			previous, err = o.snapshotBefore(ctx, session.AppID, platform, chunk.Start)
			if err != nil {
				return err
			}
		}
		previous, err = o.aggregateChunk(ctx, session, app, platform, chunk, result, previous)
		if err != nil {
			return err
		}

		processed += chunk.Days() - result.SkippedDays
		skipped += result.SkippedDays

		progress.ChunkIndex = i + 1
		progress.ProcessedDays += chunk.Days()
		last := chunk.End.AddDate(0, 0, -1)
		progress.LastProcessedDate = &last
		if err := o.repo.UpdateProgress(ctx, progress); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating sync checkpoint")
		}

		o.metrics.ObserveChunkDuration(string(platform), o.now().Sub(chunkStarted))
		o.metrics.AddProcessedDays(string(platform), chunk.Days()-result.SkippedDays)
		o.metrics.AddSkippedDays(string(platform), result.SkippedDays)
		if o.logg != nil {
			o.logg.Info(ctx, fmt.Sprintf("chunk %d/%d done: %d events stored, %d duplicates",
				i+1, len(chunks), ingested.EventsStored, ingested.DuplicatesSkipped))
		}
	}

	if err := o.repo.DeleteProgress(ctx, progress.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing sync checkpoint")
	}

	if processed == 0 {
		o.syncLog.Error(ctx, conn.ID, "no report days could be processed", "sync", string(platform))
		return pkgerrors.New(pkgerrors.CodeReportUnavailable, "no report days available").
			WithDetails(map[string]string{"platform": string(platform)})
	}

	o.syncLog.Success(ctx, conn.ID,
		fmt.Sprintf("sync finished: %d days processed, %d skipped", processed, skipped),
		"sync", string(platform))
	o.metrics.IncSuccess(string(platform))
	return nil
}

// aggregateChunk recomputes the daily snapshots the chunk covers and
// returns the last one so the next chunk can chain day-over-day
// inference off it.
func (o *Orchestrator) aggregateChunk(ctx context.Context, session *models.SyncSession, app *models.App, platform enums.Platform, chunk Chunk, result FetchResult, previous *models.MetricsSnapshot) (*models.MetricsSnapshot, error) {
	subs, err := o.ingestRepo.ListSubscriptions(ctx, session.AppID, platform)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing subscriptions")
	}
	dailyByDate := indexDaily(result.Batch.Daily)

	daysSinceCheck := 0
	for day := chunk.Start; day.Before(chunk.End); day = day.AddDate(0, 0, 1) {
		if daysSinceCheck >= o.cfg.CancelCheckDays {
			if err := o.checkCancel(ctx, session.ID); err != nil {
				return nil, err
			}
			daysSinceCheck = 0
		}
		daysSinceCheck++

		events, err := o.ingestRepo.ListEventsInRange(ctx, session.AppID, platform, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing revenue events")
		}

		snapshot, err := o.aggregator.ComputeSnapshot(ctx, aggregate.Input{
			AppID:             session.AppID,
			Platform:          platform,
			Date:              day,
			PreferredCurrency: app.PreferredCurrency,
			Subscriptions:     subs,
			Events:            events,
			Daily:             dailyByDate[day],
			FlowsReliable:     result.Batch.FlowsReliable,
			Previous:          previous,
		})
		if err != nil {
			return nil, err
		}
		if err := o.store.Upsert(ctx, snapshot); err != nil {
			return nil, err
		}
		previous = snapshot
	}
	return previous, nil
}

// ensureProgress resumes the connection's checkpoint when it belongs to
// this session, otherwise replaces it with a fresh one.
func (o *Orchestrator) ensureProgress(ctx context.Context, session *models.SyncSession, conn *models.Connection, from, to time.Time) (*models.SyncProgress, error) {
	existing, err := o.repo.FindProgressByConnection(ctx, conn.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sync checkpoint")
	}
	if existing != nil {
		if existing.SessionID == session.ID {
			return existing, nil
		}
		if err := o.repo.DeleteProgress(ctx, existing.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing stale checkpoint")
		}
	}

	progress := &models.SyncProgress{
		ID:           uuid.New(),
		ConnectionID: conn.ID,
		SessionID:    session.ID,
		StartDate:    from,
		EndDate:      to,
		ChunkSize:    o.cfg.ChunkSizeDays,
		TotalDays:    int(to.Sub(from).Hours() / 24),
		Credentials:  conn.Credentials,
	}
	if err := o.repo.CreateProgress(ctx, progress); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating sync checkpoint")
	}
	return progress, nil
}

func (o *Orchestrator) snapshotBefore(ctx context.Context, appID uuid.UUID, platform enums.Platform, day time.Time) (*models.MetricsSnapshot, error) {
	prevDay := day.AddDate(0, 0, -1)
	rows, err := o.store.Query(ctx, appID, platform, prevDay, prevDay)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[len(rows)-1], nil
}

func (o *Orchestrator) checkCancel(ctx context.Context, sessionID uuid.UUID) error {
	cancelled, err := o.sessions.cancelRequested(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking cancel flag")
	}
	if cancelled {
		return pkgerrors.New(pkgerrors.CodeSyncCancelled, "sync cancelled")
	}
	return nil
}

func (o *Orchestrator) observeFailure(ctx context.Context, conn *models.Connection, platform enums.Platform, err error) {
	if o.logg != nil {
		o.logg.Error(ctx, "platform sync failed", err)
	}
	o.syncLog.Error(ctx, conn.ID, fmt.Sprintf("sync failed: %s", err.Error()), "sync", string(platform))
	o.metrics.IncFailure(string(platform))
	if markErr := o.conns.MarkErrored(ctx, conn.ID); markErr != nil && o.logg != nil {
		o.logg.Error(ctx, "marking connection errored", markErr)
	}
}

// finishSession settles the session into a terminal state and drops
// any checkpoints still open under it.
func (o *Orchestrator) finishSession(ctx context.Context, session *models.SyncSession, state enums.SyncState) error {
	if err := o.repo.DeleteProgressBySession(ctx, session.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing session checkpoints")
	}
	finishedAt := o.now().UTC()
	session.State = state
	session.FinishedAt = &finishedAt
	if err := o.repo.UpdateSession(ctx, session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finishing sync session")
	}
	if o.logg != nil {
		o.logg.Info(ctx, fmt.Sprintf("sync session %s", state))
	}
	return nil
}

func (o *Orchestrator) withSessionContext(ctx context.Context, session *models.SyncSession) context.Context {
	if o.logg == nil {
		return ctx
	}
	ctx = o.logg.WithAppID(ctx, session.AppID.String())
	return o.logg.WithField(ctx, "session_id", session.ID.String())
}

func indexDaily(rows []reports.DailyAggregate) map[time.Time]*reports.DailyAggregate {
	index := make(map[time.Time]*reports.DailyAggregate, len(rows))
	for i := range rows {
		index[dayStart(rows[i].Date)] = &rows[i]
	}
	return index
}
