package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fabricdesk/fabricdesk/internal/auth"
	"github.com/fabricdesk/fabricdesk/internal/expenses"
	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/observability"
	"github.com/fabricdesk/fabricdesk/internal/platform/httpx"
	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/reports"
	"github.com/fabricdesk/fabricdesk/internal/sales"
	"github.com/fabricdesk/fabricdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	ExpensesHandler    *expenses.Handler
	ReportsHandler     *reports.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	// HealthChecks are probed by /healthz, keyed by dependency name.
	HealthChecks map[string]func(context.Context) error
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Logger, params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Use(params.AuthHandler.Middleware)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			r.Route("/procurement", params.ProcurementHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ExpensesHandler != nil {
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

func healthz(logger *slog.Logger, checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				report[name] = "down"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "up"
		}
		httpx.JSON(w, status, report)
	}
}
