package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/iam-copilot/api"
	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/copilot"
	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/metrics"
	"github.com/frahmantamala/iam-copilot/internal/transport"
	"github.com/frahmantamala/iam-copilot/internal/transport/rest"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle chat requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

type Dependencies struct {
	Config   *internal.Config
	Copilot  *Copilot
	EventBus *events.EventBus
	Metrics  *metrics.Metrics
	Router   *chi.Mux
	Logger   *slog.Logger
}

func startHTTPServer(ctx context.Context) error {
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Copilot.Close()

	if err := setupRoutes(deps); err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	deps.EventBus.Wait()
	deps.Logger.Info("Server stopped")
	return nil
}

func setupRoutes(deps *Dependencies) error {
	handler := copilot.NewHandler(transport.NewBaseHandler(deps.Logger), deps.Copilot.Service)

	routes := rest.Dependencies{
		CopilotHandler: handler,
		HealthChecks:   map[string]rest.Pinger{"risk_database": deps.Copilot.Executor},
		OpenAPISpec:    api.OpenAPISpec,
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
	}
	if deps.Metrics != nil {
		routes.MetricsPath = deps.Config.Observability.Metrics.Path
		routes.MetricsHandler = deps.Metrics.Handler()
	}
	return rest.RegisterAllRoutes(deps.Router, routes, deps.Logger)
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, lg, err := setup()
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(lg)

	var m *metrics.Metrics
	if config.Observability.Metrics.Enabled {
		m = metrics.New()
		m.Register(bus)
	}

	cp, err := newCopilot(ctx, config, bus, lg)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if err := m.RegisterRiskView(cp.Executor); err != nil {
			cp.Close()
			return nil, fmt.Errorf("register risk metrics: %w", err)
		}
	}

	return &Dependencies{
		Config:   config,
		Copilot:  cp,
		EventBus: bus,
		Metrics:  m,
		Router:   chi.NewRouter(),
		Logger:   lg,
	}, nil
}
