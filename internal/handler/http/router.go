package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/apparel-discovery/internal/service"
	"github.com/utafrali/apparel-discovery/pkg/health"
	"github.com/utafrali/apparel-discovery/pkg/middleware"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofEnabled      bool
	PprofAllowedCIDRs []string

	// RateLimit applies to the API routes when RPS is positive.
	RateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all discovery routes registered.
func NewRouter(
	discoveryService *service.DiscoveryService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if cfg.PprofEnabled {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.RPS > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimit, logger))
		}
		NewDiscoveryHandler(discoveryService, logger).Routes(r)
	})

	return r
}
