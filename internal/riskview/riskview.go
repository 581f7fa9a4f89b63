// Package riskview turns an identity snapshot into the queryable risk database.
package riskview

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/snapshot"
)

type BuildOptions struct {
	// ForceRecreate replaces the destination even when it already exists.
	ForceRecreate bool
}

type BuildReport struct {
	Path         string
	Recreated    bool
	Users        int
	Roles        int
	Applications int
	Groups       int
	Resources    int
	Associations map[string]int
	// Skipped counts association entries that referenced an ID missing from the snapshot.
	Skipped     int
	TopicCounts map[risk.Topic]int
	AtRisk      int
	Duration    time.Duration
}

// TopicNames returns TopicCounts keyed by the stored vocabulary.
func (r *BuildReport) TopicNames() map[string]int {
	out := make(map[string]int, len(r.TopicCounts))
	for t, n := range r.TopicCounts {
		out[t.String()] = n
	}
	return out
}

type BuilderAPI interface {
	Build(ctx context.Context, snap *snapshot.Snapshot, assignment risk.Assignment, opts BuildOptions) (*BuildReport, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	loader    snapshot.Loader
	detector  *risk.Detector
	builder   BuilderAPI
	publisher Publisher
	logger    *slog.Logger
}

func NewService(loader snapshot.Loader, detector *risk.Detector, builder BuilderAPI, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		loader:    loader,
		detector:  detector,
		builder:   builder,
		publisher: publisher,
		logger:    logger,
	}
}

// Assessment is the outcome of risk detection on a snapshot, before anything is stored.
type Assessment struct {
	Snapshot      *snapshot.Snapshot
	Assignment    risk.Assignment
	ReferenceDate time.Time
}

// UsersByTopic groups the assigned users per topic, in snapshot order.
func (a *Assessment) UsersByTopic() map[risk.Topic][]snapshot.User {
	out := make(map[risk.Topic][]snapshot.User)
	for _, u := range a.Snapshot.Users {
		if t, ok := a.Assignment.TopicFor(u.UserID); ok {
			out[t] = append(out[t], u)
		}
	}
	return out
}

func (s *Service) Assess() (*Assessment, error) {
	snap, err := s.loader.Load()
	if err != nil {
		s.logger.Error("failed to load snapshot", "error", err)
		return nil, err
	}

	return &Assessment{
		Snapshot:      snap,
		Assignment:    s.detector.Assign(snap),
		ReferenceDate: s.detector.ReferenceDate(),
	}, nil
}

// Rebuild loads the snapshot, assigns risks and writes the database. A load failure
// returns before the existing database is touched.
func (s *Service) Rebuild(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	assessment, err := s.Assess()
	if err != nil {
		return nil, err
	}

	report, err := s.builder.Build(ctx, assessment.Snapshot, assessment.Assignment, opts)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := events.NewRiskViewBuiltEvent(report.Path, report.Users, report.AtRisk, report.TopicNames(), report.Duration)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish build event", "error", err)
		}
	}
	return report, nil
}
