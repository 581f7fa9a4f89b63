package riskview_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/internal/riskview"
	"github.com/frahmantamala/iam-copilot/internal/snapshot"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRiskViewService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Risk View Service Suite")
}

type MockLoader struct {
	snap *snapshot.Snapshot
	err  error
}

func (m *MockLoader) Load() (*snapshot.Snapshot, error) {
	return m.snap, m.err
}

// MockBuilder implements riskview.BuilderAPI for testing
type MockBuilder struct {
	calls      int
	assignment risk.Assignment
	opts       riskview.BuildOptions
	failError  error
}

func (m *MockBuilder) Build(_ context.Context, snap *snapshot.Snapshot, assignment risk.Assignment, opts riskview.BuildOptions) (*riskview.BuildReport, error) {
	m.calls++
	m.assignment = assignment
	m.opts = opts
	if m.failError != nil {
		return nil, m.failError
	}
	return &riskview.BuildReport{
		Path:        "risk.db",
		Users:       len(snap.Users),
		AtRisk:      len(assignment),
		TopicCounts: assignment.Counts(),
	}, nil
}

type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockPublisher) Publish(_ context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

var _ = Describe("Service", func() {
	var (
		loader    *MockLoader
		builder   *MockBuilder
		publisher *MockPublisher
		service   *riskview.Service
	)

	BeforeEach(func() {
		loader = &MockLoader{snap: &snapshot.Snapshot{Users: []snapshot.User{
			{UserID: "U1", MFAStatus: "none", LastLogin: "2024-06-01"},
			{UserID: "U2", MFAStatus: "app", LastLogin: "2024-06-01", AccountType: "local"},
			{UserID: "U3", MFAStatus: "app", LastLogin: "2024-06-01"},
		}}}
		builder = &MockBuilder{}
		publisher = &MockPublisher{}
		detector := risk.NewDetector(logger.Discard(), risk.WithReferenceDate(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)))
		service = riskview.NewService(loader, detector, builder, publisher, logger.Discard())
	})

	Describe("Rebuild", func() {
		It("builds the assigned snapshot and publishes the result", func() {
			report, err := service.Rebuild(context.Background(), riskview.BuildOptions{ForceRecreate: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(report.AtRisk).To(Equal(2))

			Expect(builder.opts.ForceRecreate).To(BeTrue())
			Expect(builder.assignment).To(Equal(risk.Assignment{"U1": risk.NoMFAUsers, "U2": risk.LocalAccounts}))

			Expect(publisher.events).To(HaveLen(1))
			built, ok := publisher.events[0].(*events.RiskViewBuiltEvent)
			Expect(ok).To(BeTrue())
			Expect(built.EventType()).To(Equal(events.EventTypeRiskViewBuilt))
			Expect(built.TopicCounts).To(HaveKeyWithValue("LOCAL_ACCOUNTS", 1))
		})

		It("does not build when the snapshot cannot be loaded", func() {
			loader.err = errors.New("boom")
			_, err := service.Rebuild(context.Background(), riskview.BuildOptions{})
			Expect(err).To(MatchError("boom"))
			Expect(builder.calls).To(Equal(0))
			Expect(publisher.events).To(BeEmpty())
		})

		It("returns build failures without publishing", func() {
			builder.failError = errors.New("disk full")
			_, err := service.Rebuild(context.Background(), riskview.BuildOptions{})
			Expect(err).To(MatchError("disk full"))
			Expect(publisher.events).To(BeEmpty())
		})
	})

	Describe("Assess", func() {
		It("groups users per assigned topic", func() {
			assessment, err := service.Assess()
			Expect(err).NotTo(HaveOccurred())
			byTopic := assessment.UsersByTopic()
			Expect(byTopic).To(HaveLen(2))
			Expect(byTopic[risk.NoMFAUsers][0].UserID).To(Equal("U1"))
			Expect(assessment.ReferenceDate.Format("2006-01-02")).To(Equal("2024-06-30"))
			Expect(builder.calls).To(Equal(0))
		})
	})
})
