package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-bank/meridian/internal/admin"
	"github.com/meridian-bank/meridian/internal/auth"
	"github.com/meridian-bank/meridian/internal/customers"
	"github.com/meridian-bank/meridian/internal/observability"
	"github.com/meridian-bank/meridian/internal/shared"
	"github.com/meridian-bank/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	AuthMiddleware   *auth.Middleware
	CustomersHandler *customers.Handler
	AdminHandler     *admin.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			params.CustomersHandler.MountPublic(r)
			r.Route("/auth", func(r chi.Router) {
				params.AuthHandler.MountCustomer(r)
				params.AuthHandler.MountLogout(r)
				r.Route("/admin", params.AuthHandler.MountAdmin)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Require(shared.RoleCustomer))
			params.CustomersHandler.MountProtected(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(params.AuthMiddleware.Require(shared.RoleAdmin))
			params.AdminHandler.Mount(r)
		})
	})

	return r
}
