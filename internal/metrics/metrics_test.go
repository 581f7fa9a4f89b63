package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/metrics"
	"github.com/frahmantamala/iam-copilot/internal/risk"
	"github.com/frahmantamala/iam-copilot/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

type MockTopicCounter struct {
	counts map[risk.Topic]int
	err    error
	calls  int
}

func (m *MockTopicCounter) TopicCounts(context.Context) (map[risk.Topic]int, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[risk.Topic]int, len(m.counts))
	for t, n := range m.counts {
		out[t] = n
	}
	return out, nil
}

var _ = Describe("Metrics", func() {
	var (
		m   *metrics.Metrics
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		m = metrics.New()
		bus = events.NewEventBus(logger.Discard())
		m.Register(bus)
	})

	It("counts query outcomes", func() {
		Expect(bus.PublishSync(ctx, events.NewQueryCompletedEvent("t1", true, 1, time.Second))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewQueryCompletedEvent("t1", false, 3, time.Second))).To(Succeed())
		Expect(bus.PublishSync(ctx, events.NewQueryCompletedEvent("t2", true, 2, time.Second))).To(Succeed())

		Expect(testutil.ToFloat64(m.QueriesTotal.WithLabelValues("answered"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.QueriesTotal.WithLabelValues("exhausted"))).To(Equal(1.0))
		Expect(testutil.CollectAndCount(m.QueryAttempts)).To(Equal(1))
	})

	It("reads topic counts from the risk database on scrape", func() {
		source := &MockTopicCounter{counts: map[risk.Topic]int{risk.NoMFAUsers: 2, risk.LocalAccounts: 1}}
		Expect(m.RegisterRiskView(source)).To(Succeed())

		expected := `
# HELP iam_copilot_riskview_users_at_risk Users with a risk topic in the risk database
# TYPE iam_copilot_riskview_users_at_risk gauge
iam_copilot_riskview_users_at_risk 3
`
		Expect(testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "iam_copilot_riskview_users_at_risk")).To(Succeed())

		source.counts[risk.LocalAccounts] = 4
		w := httptest.NewRecorder()
		m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(w.Body.String()).To(ContainSubstring(`iam_copilot_riskview_users_per_topic{topic="LOCAL_ACCOUNTS"} 4`))
		Expect(w.Body.String()).To(ContainSubstring(`iam_copilot_riskview_users_per_topic{topic="WEAK_MFA_USERS"} 0`))
		Expect(w.Body.String()).To(ContainSubstring(`iam_copilot_riskview_users_at_risk 6`))
		Expect(source.calls).To(Equal(2))
	})

	It("fails the scrape when the risk database cannot be read", func() {
		Expect(m.RegisterRiskView(&MockTopicCounter{err: errors.New("database is locked")})).To(Succeed())

		_, err := m.Registry().Gather()
		Expect(err).To(MatchError(ContainSubstring("database is locked")))
	})

	It("rejects an event of the wrong shape", func() {
		bogus := events.BaseEvent{ID: "x", Type: events.EventTypeQueryCompleted}
		Expect(bus.PublishSync(ctx, bogus)).To(HaveOccurred())
	})

	It("serves the registry", func() {
		Expect(bus.PublishSync(ctx, events.NewQueryCompletedEvent("t1", true, 1, time.Second))).To(Succeed())

		w := httptest.NewRecorder()
		m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`iam_copilot_query_total{outcome="answered"} 1`))
	})
})
