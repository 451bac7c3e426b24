package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/fabtrack/fabtrack/internal/authz"
	"github.com/fabtrack/fabtrack/internal/observability"
	"github.com/fabtrack/fabtrack/internal/orders"
	"github.com/fabtrack/fabtrack/internal/platform/httpx"
	"github.com/fabtrack/fabtrack/internal/quotations"
	"github.com/fabtrack/fabtrack/jobs"
)

// HealthCheck probes one dependency. Optional checks degrade the report without
// failing it.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Authz             authz.Middleware
	OrdersHandler     *orders.Handler
	QuotationsHandler *quotations.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	HealthChecks      []HealthCheck
}

// NewRouter constructs the chi.Router with fabtrack defaults.
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

	r.Get("/healthz", healthHandler(params.Logger, params.HealthChecks))
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Authz.Authenticate)
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.QuotationsHandler != nil {
			r.Route("/quotations", params.QuotationsHandler.MountRoutes)
		}
	})

	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make([]error, len(checks))
		var g errgroup.Group
		for i, check := range checks {
			g.Go(func() error {
				results[i] = check.Check(ctx)
				return nil
			})
		}
		_ = g.Wait()

		report := healthReport{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for i, check := range checks {
			if results[i] == nil {
				report.Checks[check.Name] = "ok"
				continue
			}
			report.Checks[check.Name] = results[i].Error()
			logger.Warn("health check failed", slog.String("check", check.Name), slog.Any("error", results[i]))
			if check.Optional {
				if report.Status == "ok" {
					report.Status = "degraded"
				}
				continue
			}
			report.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
		httpx.JSON(w, status, report)
	}
}
