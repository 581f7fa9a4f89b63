package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/conversation"
	convbadger "github.com/frahmantamala/iam-copilot/internal/conversation/badger"
	"github.com/frahmantamala/iam-copilot/internal/copilot"
	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/llm"
	"github.com/frahmantamala/iam-copilot/internal/query"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/riskview"
	riskviewSqlite "github.com/frahmantamala/iam-copilot/internal/riskview/sqlite"
	"github.com/frahmantamala/iam-copilot/internal/snapshot"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
)

// setup loads the configuration, applies the command line overrides and installs the logger.
func setup() (*internal.Config, *slog.Logger, error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if snapshotPath != "" {
		cfg.Snapshot.Path = snapshotPath
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	return cfg, logger.LoggerWrapper(), nil
}

func newDetector(cfg *internal.Config, lg *slog.Logger) (*risk.Detector, error) {
	ref, err := cfg.Risk.ParsedReferenceDate()
	if err != nil {
		return nil, fmt.Errorf("invalid risk.reference_date: %w", err)
	}
	return risk.NewDetector(lg,
		risk.WithReferenceDate(ref),
		risk.WithWindows(cfg.Risk.InactiveDays, cfg.Risk.RecentDays),
	), nil
}

func newRiskViewService(cfg *internal.Config, bus *events.EventBus, lg *slog.Logger) (*riskview.Service, error) {
	detector, err := newDetector(cfg, lg)
	if err != nil {
		return nil, err
	}
	loader := snapshot.NewFileLoader(cfg.Snapshot.Path, lg)
	builder := riskviewSqlite.NewBuilder(cfg.Store.Path, cfg.Store.BatchSize, lg)

	var publisher riskview.Publisher
	if bus != nil {
		publisher = bus
	}
	return riskview.NewService(loader, detector, builder, publisher, lg), nil
}

func newConversationStore(cfg internal.ConversationConfig, lg *slog.Logger) (conversation.Store, error) {
	switch cfg.Backend {
	case "badger":
		return convbadger.Open(convbadger.Config{
			Path:        cfg.Path,
			MaxMessages: cfg.MaxMessages,
			Logger:      lg,
		})
	default:
		return conversation.NewMemoryStore(cfg.MaxMessages), nil
	}
}

// Copilot bundles the question answering service with the resources it holds open.
type Copilot struct {
	Service  *copilot.Service
	Executor *riskviewSqlite.Executor
	history  conversation.Store
}

func (c *Copilot) Close() {
	if err := c.history.Close(); err != nil {
		slog.Error("conversation store close error", "error", err)
	}
	if err := c.Executor.Close(); err != nil {
		slog.Error("risk database close error", "error", err)
	}
}

func newCopilot(ctx context.Context, cfg *internal.Config, bus *events.EventBus, lg *slog.Logger) (*Copilot, error) {
	executor, err := riskviewSqlite.OpenExecutor(ctx, cfg.Store.Path, lg,
		riskviewSqlite.WithSampleRows(cfg.Store.SampleRows))
	if err != nil {
		return nil, fmt.Errorf("risk database %s is not available, run the build command first: %w", cfg.Store.Path, err)
	}

	generator, err := llm.New(cfg.LLM, lg)
	if err != nil {
		_ = executor.Close()
		return nil, err
	}

	history, err := newConversationStore(cfg.Conversation, lg)
	if err != nil {
		_ = executor.Close()
		return nil, err
	}

	pipeline := query.NewPipeline(generator, executor, lg,
		query.WithMaxRetries(cfg.Pipeline.MaxRetries),
		query.WithTimeouts(cfg.Pipeline.GenerateTimeout, cfg.Pipeline.ExecuteTimeout),
	)

	var publisher copilot.Publisher
	if bus != nil {
		publisher = bus
	}
	service := copilot.NewService(pipeline, executor, history, publisher, cfg.Conversation.MaxMessages, lg)

	return &Copilot{Service: service, Executor: executor, history: history}, nil
}
