package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/api/responses"
	"github.com/revlytic/revlytic-backend/api/validators"
	syncengine "github.com/revlytic/revlytic-backend/internal/sync"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// SyncStart queues a new historical sync for the app. The worker picks
// the session up on its next poll.
func SyncStart(sessions *syncengine.SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := sessions.Start(r.Context(), appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, session)
	}
}

// SyncCancel asks the app's running sync to stop at the next safe point.
func SyncCancel(sessions *syncengine.SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := sessions.RequestCancel(r.Context(), appID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancel requested"})
	}
}

// syncStatusView combines the session with per-connection progress.
type syncStatusView struct {
	Session  *models.SyncSession  `json:"session"`
	Progress []syncProgressView   `json:"progress"`
}

type syncProgressView struct {
	ConnectionID  uuid.UUID `json:"connection_id"`
	ChunkIndex    int       `json:"chunk_index"`
	TotalChunks   int       `json:"total_chunks"`
	ProcessedDays int       `json:"processed_days"`
	TotalDays     int       `json:"total_days"`
	Percentage    int       `json:"percentage"`
}

// SyncStatus reports the app's active session and backfill progress.
func SyncStatus(sessions *syncengine.SessionManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, progress, err := sessions.Status(r.Context(), appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if session == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "no active sync session"))
			return
		}

		view := syncStatusView{Session: session, Progress: make([]syncProgressView, 0, len(progress))}
		for _, p := range progress {
			view.Progress = append(view.Progress, syncProgressView{
				ConnectionID:  p.ConnectionID,
				ChunkIndex:    p.ChunkIndex,
				TotalChunks:   p.TotalChunks(),
				ProcessedDays: p.ProcessedDays,
				TotalDays:     p.TotalDays,
				Percentage:    p.Percentage(),
			})
		}
		responses.WriteSuccess(w, view)
	}
}

// SyncLogs returns the most recent log entries for a connection.
func SyncLogs(repo syncengine.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connectionID, err := parseConnectionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 100, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		logs, err := repo.ListLogs(r.Context(), connectionID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing sync logs"))
			return
		}
		responses.WriteSuccess(w, logs)
	}
}
