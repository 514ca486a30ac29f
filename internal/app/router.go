package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/machinemu/machinemu/internal/auth"
	"github.com/machinemu/machinemu/internal/cars"
	"github.com/machinemu/machinemu/internal/motorcycles"
	"github.com/machinemu/machinemu/internal/observability"
	"github.com/machinemu/machinemu/internal/rbac"
	"github.com/machinemu/machinemu/internal/roles"
	"github.com/machinemu/machinemu/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *rbac.PermissionsHandler
	CarsHandler        *cars.Handler
	MotorcyclesHandler *motorcycles.Handler
	Guard              rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router. Login, registration, health and
// metrics are public; everything under /api and the token introspection
// endpoint require a verified bearer token.
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

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Authenticate)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Guard.Authenticate)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		r.Route("/cars", params.CarsHandler.MountRoutes)
		r.Route("/motorcycles", params.MotorcyclesHandler.MountRoutes)
	})

	return r
}
