package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/helios-portal/helios-portal/internal/auth"
	"github.com/helios-portal/helios-portal/internal/groupsync"
	"github.com/helios-portal/helios-portal/internal/observability"
	"github.com/helios-portal/helios-portal/internal/rbac"
	"github.com/helios-portal/helios-portal/internal/staff"
	"github.com/helios-portal/helios-portal/internal/verification"
	"github.com/helios-portal/helios-portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	AuthHandler         *auth.Handler
	StaffHandler        *staff.Handler
	PermissionsHandler  *rbac.Handler
	VerificationHandler *verification.Handler
	SyncHandler         *groupsync.Handler
	JobHandler          *jobs.Handler
	RBACMiddleware      rbac.Middleware
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
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

	guard := params.AuthHandler.AuthMiddleware()

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/users", func(r chi.Router) {
		r.Use(guard.RequireAuth)
		params.StaffHandler.MountRoutes(r)
	})

	r.Route("/permissions", func(r chi.Router) {
		r.Use(guard.RequireAuth)
		r.Use(params.RBACMiddleware.Require(rbac.CapManagePermissions))
		params.PermissionsHandler.MountRoutes(r)
	})

	// Accounts still pending verification need these routes, so only a
	// live session is required here.
	r.Route("/verification", func(r chi.Router) {
		r.Use(guard.RequireSession)
		params.VerificationHandler.MountRoutes(r)
	})

	r.Route("/sync", func(r chi.Router) {
		r.Use(guard.RequireAuth)
		r.Use(params.RBACMiddleware.Require(rbac.CapTriggerSync))
		params.SyncHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(guard.RequireAuth)
			r.Use(params.RBACMiddleware.Require(rbac.CapTriggerSync))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
