package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/iam-copilot/internal"
	"github.com/frahmantamala/iam-copilot/internal/conversation"
	"github.com/frahmantamala/iam-copilot/internal/sqlextract"
)

const DefaultMaxRetries = 3

// Generator turns a prompt into free-form text that may contain SQL.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Executor runs one read-only statement and renders its rows as text.
type Executor interface {
	Execute(ctx context.Context, sql string) (string, error)
}

type Request struct {
	Question       string
	SchemaMetadata string
	History        []conversation.Message
}

type Result struct {
	Answer    string
	SQL       string
	Succeeded bool
	Attempts  int
	// Err is the last error seen, set when the retries ran out.
	Err error
}

type Pipeline struct {
	generator       Generator
	executor        Executor
	maxRetries      int
	generateTimeout time.Duration
	executeTimeout  time.Duration
	logger          *slog.Logger
}

type Option func(*Pipeline)

func WithMaxRetries(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func WithTimeouts(generate, execute time.Duration) Option {
	return func(p *Pipeline) {
		p.generateTimeout = generate
		p.executeTimeout = execute
	}
}

func NewPipeline(generator Generator, executor Executor, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		generator:       generator,
		executor:        executor,
		maxRetries:      DefaultMaxRetries,
		generateTimeout: 2 * time.Minute,
		executeTimeout:  10 * time.Second,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives one question to an answer. Failures inside the pipeline are retried and,
// once retries run out, reported in Result.Answer. Only cancellation of ctx is
// returned as an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, internal.ErrEmptyQuestion
	}

	st := &State{
		Question:       req.Question,
		SchemaMetadata: req.SchemaMetadata,
		History:        req.History,
		Phase:          PhaseGenerate,
	}
	log := p.logger.With("thread_id", internal.ThreadIDFromContext(ctx))

	// Each attempt passes through at most four phases.
	maxSteps := p.maxRetries * 4
	for step := 0; step < maxSteps && !st.Done; step++ {
		if err := ctx.Err(); err != nil {
			log.Info("query abandoned", "phase", st.Phase.String(), "error", err)
			return nil, err
		}

		var event Event
		switch st.Phase {
		case PhaseGenerate:
			event = p.generate(ctx, st)
		case PhaseValidate:
			event = p.validate(st)
		case PhaseExecute:
			event = p.execute(ctx, st)
		case PhaseErrorHandle:
			event = p.handleError(st)
		}

		next := Next(st.Phase, event)
		log.Debug("query step", "phase", st.Phase.String(), "event", event.String(), "next", next.String(), "retry", st.RetryCount)
		st.Phase = next
		st.Done = next == PhaseDone
	}
	if err := ctx.Err(); err != nil && !st.Succeeded {
		return nil, err
	}
	if !st.Done {
		st.Result = exhaustedAnswer(st.Err)
		st.Done = true
	}

	result := &Result{
		Answer:    st.Result,
		Succeeded: st.Succeeded,
		Attempts:  st.Attempts,
	}
	if st.Succeeded {
		result.SQL = st.CurrentSQL
	} else {
		result.Err = st.Err
	}

	log.Info("query finished", "succeeded", result.Succeeded, "attempts", result.Attempts)
	return result, nil
}

func (p *Pipeline) generate(ctx context.Context, st *State) Event {
	prompt, err := BuildPrompt(st)
	if err != nil {
		st.Err = internal.NewInternalError("cannot build prompt", err)
		return EventFailed
	}

	gctx, cancel := internal.WithTimeout(ctx, p.generateTimeout)
	defer cancel()

	st.Attempts++
	text, err := p.generator.Generate(gctx, prompt)
	if err != nil {
		st.Err = internal.NewExternalError("text generation failed", internal.ErrCodeGenerateFailed, err)
		return EventFailed
	}

	sql, err := sqlextract.Extract(text, "")
	if err != nil {
		st.Err = err
		return EventFailed
	}
	st.CurrentSQL = sql
	return EventSucceeded
}

func (p *Pipeline) validate(st *State) Event {
	sql, err := sqlextract.Extract(st.CurrentSQL, "")
	if err != nil {
		st.Err = err
		return EventFailed
	}
	st.CurrentSQL = sql
	return EventSucceeded
}

func (p *Pipeline) execute(ctx context.Context, st *State) Event {
	ectx, cancel := internal.WithTimeout(ctx, p.executeTimeout)
	defer cancel()

	out, err := p.executor.Execute(ectx, st.CurrentSQL)
	if err != nil {
		if _, ok := internal.IsAppError(err); !ok {
			err = internal.NewExecutionError("query failed", internal.ErrCodeQueryFailed, err)
		}
		st.Err = err
		return EventFailed
	}
	if strings.TrimSpace(out) == "" {
		st.Err = internal.ErrEmptyResult
		return EventFailed
	}

	st.Result = out
	st.Succeeded = true
	st.Err = nil
	return EventSucceeded
}

func (p *Pipeline) handleError(st *State) Event {
	st.RetryCount++
	if st.RetryCount >= p.maxRetries {
		st.Result = exhaustedAnswer(st.Err)
		return EventExhausted
	}
	st.CurrentSQL = ""
	return EventRetry
}

func exhaustedAnswer(err error) string {
	return fmt.Sprintf("Error: %v. Maximum retries reached.", err)
}
