// Package copilot answers natural language questions about the risk database, one
// conversation thread at a time.
package copilot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/conversation"
	"github.com/frahmantamala/iam-copilot/internal/core/common/validation"
	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/query"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
)

type PipelineAPI interface {
	Run(ctx context.Context, req query.Request) (*query.Result, error)
}

// StoreAPI is the read side of the risk database.
type StoreAPI interface {
	SchemaMetadata(ctx context.Context) (string, error)
	TopicCounts(ctx context.Context) (map[risk.Topic]int, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Answer struct {
	ThreadID  string
	Response  string
	SQL       string
	Succeeded bool
	Attempts  int
}

type TopicSummary struct {
	Topic       risk.Topic
	Description string
	Users       int
}

type Service struct {
	pipeline  PipelineAPI
	store     StoreAPI
	history   conversation.Store
	publisher Publisher
	logger    *slog.Logger

	// historyLimit caps the messages handed to the prompt, not the ones stored.
	historyLimit int

	schemaMu sync.Mutex
	schema   string
}

func NewService(pipeline PipelineAPI, store StoreAPI, history conversation.Store, publisher Publisher, historyLimit int, logger *slog.Logger) *Service {
	return &Service{
		pipeline:     pipeline,
		store:        store,
		history:      history,
		publisher:    publisher,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Ask runs one question in threadID, starting a new thread when threadID is empty.
// Exhausted retries are a normal answer; only validation, storage and cancellation
// failures are returned as errors.
func (s *Service) Ask(ctx context.Context, threadID, question string) (*Answer, error) {
	if err := validation.ValidateQuestion(question); err != nil {
		return nil, err
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	ctx = internal.ContextWithThreadID(ctx, threadID)
	log := logger.FromOr(ctx, s.logger).With("thread_id", threadID)

	schema, err := s.schemaMetadata(ctx)
	if err != nil {
		log.Error("failed to read schema metadata", "error", err)
		return nil, err
	}

	past, err := s.history.History(ctx, threadID)
	if err != nil {
		log.Error("failed to load conversation", "error", err)
		return nil, internal.NewInternalError("cannot load conversation", err)
	}

	start := time.Now()
	result, err := s.pipeline.Run(ctx, query.Request{
		Question:       question,
		SchemaMetadata: schema,
		History:        conversation.Tail(past, s.historyLimit),
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	err = s.history.Append(ctx, threadID,
		conversation.NewMessage(conversation.RoleHuman, question),
		conversation.NewMessage(conversation.RoleAssistant, result.Answer),
	)
	if err != nil {
		log.Error("failed to save conversation", "error", err)
		return nil, internal.NewInternalError("cannot save conversation", err)
	}

	if s.publisher != nil {
		event := events.NewQueryCompletedEvent(threadID, result.Succeeded, result.Attempts, elapsed)
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warn("failed to publish query event", "error", err)
		}
	}

	log.Info("question answered",
		"succeeded", result.Succeeded,
		"attempts", result.Attempts,
		"duration_ms", elapsed.Milliseconds())

	return &Answer{
		ThreadID:  threadID,
		Response:  result.Answer,
		SQL:       result.SQL,
		Succeeded: result.Succeeded,
		Attempts:  result.Attempts,
	}, nil
}

// Reset forgets the history of threadID.
func (s *Service) Reset(ctx context.Context, threadID string) error {
	if err := s.history.Reset(ctx, threadID); err != nil {
		return internal.NewInternalError("cannot reset conversation", err)
	}
	return nil
}

// RiskTopics lists every topic, highest priority first, with its stored user count.
func (s *Service) RiskTopics(ctx context.Context) ([]TopicSummary, error) {
	counts, err := s.store.TopicCounts(ctx)
	if err != nil {
		s.logger.Error("failed to count risk topics", "error", err)
		return nil, err
	}

	topics := risk.Priority()
	out := make([]TopicSummary, 0, len(topics))
	for _, t := range topics {
		out = append(out, TopicSummary{Topic: t, Description: t.Description(), Users: counts[t]})
	}
	return out, nil
}

// schemaMetadata is read once per database and cached. Failures are not cached.
func (s *Service) schemaMetadata(ctx context.Context) (string, error) {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()

	if s.schema != "" {
		return s.schema, nil
	}
	schema, err := s.store.SchemaMetadata(ctx)
	if err != nil {
		return "", err
	}
	s.schema = schema
	return schema, nil
}
