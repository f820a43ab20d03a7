package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/revlytic/revlytic-backend/api/responses"
	"github.com/revlytic/revlytic-backend/api/validators"
	"github.com/revlytic/revlytic-backend/internal/connections"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

// AppCreate registers a new app.
func AppCreate(svc *connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input connections.CreateAppInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.CreateApp(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, app)
	}
}

// AppGet returns one app by ID.
func AppGet(svc *connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		app, err := svc.GetApp(r.Context(), appID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, app)
	}
}

// AppList returns every registered app.
func AppList(svc *connections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := svc.ListApps(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, apps)
	}
}

func parseAppID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "appID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid app id")
	}
	return id, nil
}
