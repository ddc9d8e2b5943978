package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
	apierrors "github.com/briantruongvn/ngocson-tss-converter/internal/errors"
	"github.com/briantruongvn/ngocson-tss-converter/internal/infrastructure"
)

// RouterDeps collects everything the router wires together.
type RouterDeps struct {
	Convert  *ConvertHandler
	Runs     *RunsHandler
	Health   *HealthHandler
	WS       *WSHandler
	Gatherer prometheus.Gatherer
	Metrics  *infrastructure.HTTPMetrics
	Logger   *slog.Logger
	Server   config.ServerConfig
}

// NewRouter assembles the chi router with the full middleware chain.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(StructuredLogger(deps.Logger))
	r.Use(Recoverer(deps.Logger))
	r.Use(SecurityHeaders)
	r.Use(HTTPMetricsMiddleware(deps.Metrics))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			r.Use(Timeout(deps.Server.ReadTimeout, deps.Logger))
			r.Get("/health", deps.Health.HealthCheck)
			r.Get("/version", deps.Health.Version)
			r.Mount("/runs", deps.Runs.Routes())
		})

		// Uploads get the long operation timeout; a 100MB workbook on
		// a slow link outlives the read timeout.
		r.Group(func(r chi.Router) {
			r.Use(Timeout(deps.Server.OperationTimeout, deps.Logger))
			r.Post("/convert", deps.Convert.Convert)
		})
	})

	if deps.Gatherer != nil {
		r.Get(config.MetricsEndpoint, promhttp.HandlerFor(
			deps.Gatherer, promhttp.HandlerOpts{},
		).ServeHTTP)
	}

	if deps.WS != nil {
		r.Get(config.WebSocketEndpoint, deps.WS.Serve)
	}

	errHandler := apierrors.NewErrorHandler(deps.Logger, false)
	r.NotFound(errHandler.NotFound)
	r.MethodNotAllowed(errHandler.MethodNotAllowed)

	return r
}
