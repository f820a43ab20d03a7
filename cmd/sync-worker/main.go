package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/revlytic/revlytic-backend/internal/aggregate"
	"github.com/revlytic/revlytic-backend/internal/connections"
	"github.com/revlytic/revlytic-backend/internal/currency"
	"github.com/revlytic/revlytic-backend/internal/ingest"
	"github.com/revlytic/revlytic-backend/internal/snapshots"
	syncengine "github.com/revlytic/revlytic-backend/internal/sync"
	"github.com/revlytic/revlytic-backend/pkg/config"
	"github.com/revlytic/revlytic-backend/pkg/db"
	"github.com/revlytic/revlytic-backend/pkg/instance"
	"github.com/revlytic/revlytic-backend/pkg/logger"
	"github.com/revlytic/revlytic-backend/pkg/metrics"
	"github.com/revlytic/revlytic-backend/pkg/migrate"
	"github.com/revlytic/revlytic-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sync-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	worker, err := buildWorker(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build sync worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting sync worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync worker shutting down gracefully")
}

func buildWorker(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*syncengine.Worker, error) {
	gormDB := dbClient.DB()

	connSvc, err := connections.NewService(connections.ServiceParams{
		Repo:   connections.NewRepository(gormDB),
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	ingestRepo := ingest.NewRepository(gormDB)
	ingestor, err := ingest.NewService(ingest.ServiceParams{Repo: ingestRepo, Logger: logg})
	if err != nil {
		return nil, err
	}

	converter, err := currency.NewConverter(currency.ConverterParams{
		Rates:  currency.NewRepository(gormDB),
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	aggregator, err := aggregate.NewAggregator(aggregate.AggregatorParams{
		Converter:   converter,
		PlatformFee: cfg.Sync.AssumedPlatformFee,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	store, err := snapshots.NewStore(snapshots.StoreParams{
		Repo:   snapshots.NewRepository(gormDB),
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	sources, err := syncengine.NewSources(syncengine.SourcesParams{
		Converter:         converter,
		Logger:            logg,
		RecentReportGrace: cfg.Sync.RecentReportGrace,
	})
	if err != nil {
		return nil, err
	}

	syncRepo := syncengine.NewRepository(gormDB)
	sessions, err := syncengine.NewSessionManager(syncengine.SessionManagerParams{
		Repo:   syncRepo,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	syncLog, err := syncengine.NewLogger(syncengine.LoggerParams{Repo: syncRepo, Logger: logg})
	if err != nil {
		return nil, err
	}

	orch, err := syncengine.NewOrchestrator(syncengine.OrchestratorParams{
		Repo:        syncRepo,
		Sessions:    sessions,
		Connections: connSvc,
		Ingestor:    ingestor,
		IngestRepo:  ingestRepo,
		Aggregator:  aggregator,
		Store:       store,
		Sources:     sources,
		SyncLog:     syncLog,
		Metrics:     metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
		Config:      cfg.Sync,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	lock, err := syncengine.NewRedisLock(redisClient, redisClient.LockKey("sync-worker"), 0)
	if err != nil {
		return nil, err
	}

	return syncengine.NewWorker(syncengine.WorkerParams{
		Repo:         syncRepo,
		Orchestrator: orch,
		Lock:         lock,
		Logger:       logg,
		PollInterval: cfg.Sync.PollInterval,
	})
}
