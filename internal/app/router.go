package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sma-almacen/sma/internal/auth"
	"github.com/sma-almacen/sma/internal/inventory"
	"github.com/sma-almacen/sma/internal/masterdata/items"
	"github.com/sma-almacen/sma/internal/masterdata/suppliers"
	"github.com/sma-almacen/sma/internal/observability"
	"github.com/sma-almacen/sma/internal/platform/httpx"
	"github.com/sma-almacen/sma/internal/rbac"
	"github.com/sma-almacen/sma/internal/reports"
	"github.com/sma-almacen/sma/internal/shared"
	"github.com/sma-almacen/sma/internal/users"
	"github.com/sma-almacen/sma/internal/view"
	"github.com/sma-almacen/sma/jobs"
	"github.com/sma-almacen/sma/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	InventoryHandler *inventory.Handler
	ItemsHandler     *items.Handler
	SuppliersHandler *suppliers.Handler
	ReportsHandler   *reports.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if shared.SessionUserID(shared.SessionFromContext(r.Context())) == 0 {
				http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
				return
			}
			params.RBACMiddleware.Authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor, _ := shared.ActorFromContext(r.Context())
				http.Redirect(w, r, rbac.SafeDefault(rbac.Level(actor.Level)), http.StatusSeeOther)
			})).ServeHTTP(w, r)
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		r.Route("/inventory", func(r chi.Router) {
			r.Route("/items", params.ItemsHandler.MountRoutes)
			params.InventoryHandler.MountRoutes(r)
		})
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
