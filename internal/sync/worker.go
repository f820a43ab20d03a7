package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

const defaultPollInterval = 15 * time.Second

// Worker polls for pending sessions and runs them one at a time. A
// Redis lock keeps a single instance draining the queue so two workers
// never race over the same session.
type Worker struct {
	repo     Repository
	orch     *Orchestrator
	lock     Lock
	logg     *logger.Logger
	interval time.Duration
}

// WorkerParams configure a Worker.
type WorkerParams struct {
	Repo         Repository
	Orchestrator *Orchestrator
	Lock         Lock
	Logger       *logger.Logger
	PollInterval time.Duration
}

// NewWorker validates dependencies and builds a Worker.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync repository required")
	}
	if params.Orchestrator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator required")
	}
	if params.Lock == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "lock required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Worker{
		repo:     params.Repo,
		orch:     params.Orchestrator,
		lock:     params.Lock,
		logg:     params.Logger,
		interval: interval,
	}, nil
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w.drain(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "sync worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	locked, err := w.lock.Acquire(ctx)
	if err != nil {
		w.logg.Error(ctx, "acquiring sync worker lock", err)
		return
	}
	if !locked {
		return
	}
	defer func() {
		if relErr := w.lock.Release(ctx); relErr != nil {
			w.logg.Error(ctx, "releasing sync worker lock", relErr)
		}
	}()

	sessions, err := w.repo.ListPendingSessions(ctx)
	if err != nil {
		w.logg.Error(ctx, "listing pending sync sessions", err)
		return
	}
	var errs []error
	for _, session := range sessions {
		if ctx.Err() != nil {
			break
		}
		if err := w.orch.Run(ctx, session.ID); err != nil {
			errs = append(errs, fmt.Errorf("app %s session %s: %w", session.AppID, session.ID, err))
		}
	}
	if combined := multierr.Combine(errs...); combined != nil {
		w.logg.Error(ctx, "sync drain finished with failures", combined)
	}
}
