package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/revlytic/revlytic-backend/api/controllers"
	"github.com/revlytic/revlytic-backend/api/middleware"
	"github.com/revlytic/revlytic-backend/internal/connections"
	"github.com/revlytic/revlytic-backend/internal/currency"
	"github.com/revlytic/revlytic-backend/internal/snapshots"
	syncengine "github.com/revlytic/revlytic-backend/internal/sync"
	"github.com/revlytic/revlytic-backend/pkg/config"
	"github.com/revlytic/revlytic-backend/pkg/db"
	"github.com/revlytic/revlytic-backend/pkg/logger"
	"github.com/revlytic/revlytic-backend/pkg/redis"
)

// RouterParams carry everything the API surface needs.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Connections *connections.Service
	Snapshots   *snapshots.Store
	Sessions    *syncengine.SessionManager
	SyncRepo    syncengine.Repository
	Rates       currency.Repository
}

// NewRouter wires the HTTP surface: health probes, app and connection
// management, snapshot queries, sync control, and the exchange-rate
// feed endpoint.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	r.Route("/api/v1/apps", func(r chi.Router) {
		r.Post("/", controllers.AppCreate(params.Connections, logg))
		r.Get("/", controllers.AppList(params.Connections, logg))

		r.Route("/{appID}", func(r chi.Router) {
			r.Get("/", controllers.AppGet(params.Connections, logg))

			r.Route("/connections", func(r chi.Router) {
				r.Post("/", controllers.ConnectionCreate(params.Connections, logg))
				r.Get("/", controllers.ConnectionList(params.Connections, logg))
				r.Delete("/{platform}", controllers.ConnectionDelete(params.Connections, logg))
			})

			r.Get("/snapshots", controllers.SnapshotsQuery(params.Snapshots, logg))

			r.Route("/sync", func(r chi.Router) {
				r.Post("/", controllers.SyncStart(params.Sessions, logg))
				r.Delete("/", controllers.SyncCancel(params.Sessions, logg))
				r.Get("/", controllers.SyncStatus(params.Sessions, logg))
			})
		})
	})

	r.Route("/api/v1/connections/{connectionID}", func(r chi.Router) {
		r.Get("/logs", controllers.SyncLogs(params.SyncRepo, logg))
	})

	r.Route("/api/v1/rates", func(r chi.Router) {
		r.Post("/", controllers.RateRecord(params.Rates, logg))
		r.Get("/", controllers.RateList(params.Rates, logg))
		r.Get("/estimate", controllers.RateEstimate(logg))
	})

	return r
}
