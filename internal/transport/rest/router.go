package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/iam-copilot/internal/copilot"
	"github.com/frahmantamala/iam-copilot/internal/transport/middleware"
	"github.com/frahmantamala/iam-copilot/internal/transport/swagger"
)

type Dependencies struct {
	CopilotHandler *copilot.Handler
	// HealthChecks are pinged by /health, keyed by component name.
	HealthChecks   map[string]Pinger
	OpenAPISpec    []byte
	MetricsPath    string
	MetricsHandler http.Handler
	AllowedOrigins string
}

func RegisterAllRoutes(router *chi.Mux, deps Dependencies, logger *slog.Logger) error {
	healthHandler := NewHealthHandler(deps.HealthChecks)

	// Apply global middleware
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(deps.OpenAPISpec)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	if deps.MetricsHandler != nil && deps.MetricsPath != "" {
		router.Handle(deps.MetricsPath, deps.MetricsHandler)
	}

	var validate func(http.Handler) http.Handler
	if len(deps.OpenAPISpec) > 0 {
		v, err := middleware.OpenAPIValidator(deps.OpenAPISpec, logger)
		if err != nil {
			return err
		}
		validate = v
	}

	// Mount API under /api/v1 to match the OpenAPI server URL
	router.Route("/api/v1", func(r chi.Router) {
		if validate != nil {
			r.Use(validate)
		}

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if deps.CopilotHandler != nil {
			r.Post("/chat", deps.CopilotHandler.Chat)
			r.Get("/risk-topics", deps.CopilotHandler.GetRiskTopics)
		}
	})
	return nil
}
