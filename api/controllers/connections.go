package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/api/responses"
	"github.com/revlytic/revlytic-backend/api/validators"
	"github.com/revlytic/revlytic-backend/internal/connections"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// connectionView is the wire shape for a connection. Credentials are
// write-only and never echoed back.
type connectionView struct {
	ID           uuid.UUID              `json:"id"`
	Platform     enums.Platform         `json:"platform"`
	Status       enums.ConnectionStatus `json:"status"`
	LastSyncedAt *time.Time             `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func viewConnection(conn models.Connection) connectionView {
	return connectionView{
		ID:           conn.ID,
		Platform:     conn.Platform,
		Status:       conn.Status,
		LastSyncedAt: conn.LastSyncedAt,
		CreatedAt:    conn.CreatedAt,
	}
}

func parseConnectionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "connectionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid connection id")
	}
	return id, nil
}

// ConnectionCreate attaches platform credentials to an app.
func ConnectionCreate(svc *connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input connections.ConnectInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := svc.Connect(r.Context(), appID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, viewConnection(*conn))
	}
}

// ConnectionList returns the app's connections without credentials.
func ConnectionList(svc *connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conns, err := svc.ListConnections(r.Context(), appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]connectionView, 0, len(conns))
		for _, conn := range conns {
			views = append(views, viewConnection(conn))
		}
		responses.WriteSuccess(w, views)
	}
}

// ConnectionDelete removes the app's connection for one platform.
func ConnectionDelete(svc *connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		platform := enums.Platform(chi.URLParam(r, "platform"))
		if !platform.IsSource() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown platform"))
			return
		}

		if err := svc.Disconnect(r.Context(), appID, platform); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "disconnected"})
	}
}
