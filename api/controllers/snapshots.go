package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/revlytic/revlytic-backend/api/responses"
	"github.com/revlytic/revlytic-backend/internal/snapshots"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
)

const snapshotDateLayout = "2006-01-02"

// SnapshotsQuery returns daily metric snapshots for an app over a date
// range. Platform defaults to the unified roll-up.
func SnapshotsQuery(store *snapshots.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := parseAppID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		platform := enums.PlatformUnified
		if raw := strings.TrimSpace(r.URL.Query().Get("platform")); raw != "" {
			platform = enums.Platform(raw)
			if !platform.IsValid() {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "unknown platform"))
				return
			}
		}

		from, to, err := parseDateRange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := store.Query(r.Context(), appID, platform, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// parseDateRange reads from/to query params, defaulting to the last 30
// days ending yesterday.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, -1)

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(snapshotDateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from date")
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(snapshotDateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to date")
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "to must not precede from")
	}
	return from, to, nil
}
