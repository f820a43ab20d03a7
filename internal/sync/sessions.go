package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// SessionManager owns the per-app sync lease. An app has at most one
// session in pending or running state; starting a new sync asks the
// previous one to stop first.
type SessionManager struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// SessionManagerParams configure a SessionManager.
type SessionManagerParams struct {
	Repo   Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// NewSessionManager validates dependencies and builds a SessionManager.
func NewSessionManager(params SessionManagerParams) (*SessionManager, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sync repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// Start creates a new pending session for the app. Any session still
// pending or running gets its cancel flag raised so the worker winds it
// down at the next chunk boundary.
func (m *SessionManager) Start(ctx context.Context, appID uuid.UUID) (*models.SyncSession, error) {
	active, err := m.repo.FindActiveSession(ctx, appID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up active sync session")
	}
	if active != nil && !active.CancelRequested {
		active.CancelRequested = true
		if err := m.repo.UpdateSession(ctx, active); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling previous sync session")
		}
		if m.logg != nil {
			m.logg.Info(m.logg.WithAppID(ctx, appID.String()), "previous sync session asked to stop")
		}
	}

	session := &models.SyncSession{
		ID:    uuid.New(),
		AppID: appID,
		State: enums.SyncStatePending,
	}
	if err := m.repo.CreateSession(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating sync session")
	}
	return session, nil
}

// RequestCancel raises the cancel flag on the app's active session.
func (m *SessionManager) RequestCancel(ctx context.Context, appID uuid.UUID) error {
	active, err := m.repo.FindActiveSession(ctx, appID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up active sync session")
	}
	if active == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no active sync session")
	}
	if active.CancelRequested {
		return nil
	}
	active.CancelRequested = true
	return m.repo.UpdateSession(ctx, active)
}

// Status reports the latest session for the app alongside the backfill
// checkpoints still open under it.
func (m *SessionManager) Status(ctx context.Context, appID uuid.UUID) (*models.SyncSession, []models.SyncProgress, error) {
	session, err := m.repo.FindActiveSession(ctx, appID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up active sync session")
	}
	if session == nil {
		return nil, nil, nil
	}
	progress, err := m.repo.ListProgressBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing sync progress")
	}
	return session, progress, nil
}

// cancelRequested re-reads the session row so a flag raised by another
// process is observed.
func (m *SessionManager) cancelRequested(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	session, err := m.repo.FindSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session == nil {
		return true, nil
	}
	return session.CancelRequested, nil
}
