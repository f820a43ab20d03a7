package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
)

func newTestSessionManager(t *testing.T) (*SessionManager, Repository) {
	t.Helper()
	repo := NewRepository(setupSyncTestDB(t))
	manager, err := NewSessionManager(SessionManagerParams{Repo: repo, Now: func() time.Time { return syncNow }})
	require.NoError(t, err)
	return manager, repo
}

func TestStartCancelsPriorActiveSession(t *testing.T) {
	manager, repo := newTestSessionManager(t)
	ctx := context.Background()
	appID := uuid.New()

	first, err := manager.Start(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatePending, first.State)
	assert.False(t, first.CancelRequested)

	second, err := manager.Start(ctx, appID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	reloaded, err := repo.FindSession(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CancelRequested, "starting a new sync must ask the old one to stop")

	current, err := repo.FindSession(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, current.CancelRequested)
}

func TestRequestCancelWithoutActiveSession(t *testing.T) {
	manager, _ := newTestSessionManager(t)

	err := manager.RequestCancel(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRequestCancelIsIdempotent(t *testing.T) {
	manager, repo := newTestSessionManager(t)
	ctx := context.Background()
	appID := uuid.New()

	session, err := manager.Start(ctx, appID)
	require.NoError(t, err)

	require.NoError(t, manager.RequestCancel(ctx, appID))
	require.NoError(t, manager.RequestCancel(ctx, appID))

	reloaded, err := repo.FindSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CancelRequested)
}
