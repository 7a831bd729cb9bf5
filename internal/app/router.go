package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ebudget/ebudget/internal/auth"
	budgethttp "github.com/ebudget/ebudget/internal/budget/http"
	budgetlockhttp "github.com/ebudget/ebudget/internal/budgetlock/http"
	"github.com/ebudget/ebudget/internal/observability"
	"github.com/ebudget/ebudget/internal/platform/httpx"
	ppehttp "github.com/ebudget/ebudget/internal/ppe/http"
	reporthttp "github.com/ebudget/ebudget/internal/report/http"
	"github.com/ebudget/ebudget/internal/shared"
	uploadhttp "github.com/ebudget/ebudget/internal/upload/http"
	"github.com/ebudget/ebudget/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Gate           *auth.Gate
	Metrics        *observability.Metrics
	HealthChecks   []httpx.Check

	AuthHandler   *auth.Handler
	BudgetHandler *budgethttp.Handler
	LockHandler   *budgetlockhttp.Handler
	ReportHandler *reporthttp.Handler
	PPEHandler    *ppehttp.Handler
	UploadHandler *uploadhttp.Handler
}

// NewRouter constructs the chi.Router with eBudget defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", httpx.Health(params.HealthChecks...))
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

		params.AuthHandler.MountRoutes(r)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if auth.IsAuthenticated(auth.StateFromContext(r.Context())) {
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, auth.LoginURL(""), http.StatusSeeOther)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.Gate.Require)
			params.ReportHandler.MountRoutes(r)
			params.BudgetHandler.MountRoutes(r)
			params.PPEHandler.MountRoutes(r)
			params.UploadHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.Gate.RequireSuper)
				params.LockHandler.MountRoutes(r)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, auth.LoginURL(""), http.StatusSeeOther)
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
