package sync

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// Logger writes the leveled per-connection log stream the dashboard
// renders. Entries are best-effort: a failed insert is reported to the
// process log but never fails the sync run that produced it.
type Logger struct {
	repo Repository
	logg *logger.Logger
}

// LoggerParams configure a sync logger.
type LoggerParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// NewLogger validates dependencies and builds a Logger.
func NewLogger(params LoggerParams) (*Logger, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync repository required")
	}
	return &Logger{repo: params.Repo, logg: params.Logger}, nil
}

// Info records an informational entry.
func (l *Logger) Info(ctx context.Context, connectionID uuid.UUID, message string, tags ...string) {
	l.write(ctx, connectionID, enums.SyncLogLevelInfo, message, tags)
}

// Success records a completed-work entry.
func (l *Logger) Success(ctx context.Context, connectionID uuid.UUID, message string, tags ...string) {
	l.write(ctx, connectionID, enums.SyncLogLevelSuccess, message, tags)
}

// Error records a failure entry.
func (l *Logger) Error(ctx context.Context, connectionID uuid.UUID, message string, tags ...string) {
	l.write(ctx, connectionID, enums.SyncLogLevelError, message, tags)
}

func (l *Logger) write(ctx context.Context, connectionID uuid.UUID, level enums.SyncLogLevel, message string, tags []string) {
	entry := &models.SyncLog{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		Level:        level,
		Message:      message,
		Tags:         pq.StringArray(tags),
	}
	if err := l.repo.CreateLog(ctx, entry); err != nil && l.logg != nil {
		l.logg.Error(ctx, "writing sync log entry", err)
	}
}
