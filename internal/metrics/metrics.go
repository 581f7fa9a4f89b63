// Package metrics exposes Prometheus metrics fed by domain events.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/iam-copilot/internal/core/events"
	"github.com/frahmantamala/iam-copilot/internal/risk"
)

const (
	namespace = "iam_copilot"

	riskScrapeTimeout = 5 * time.Second
)

type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

// TopicCounter reports how many users the risk database assigns to each topic.
type TopicCounter interface {
	TopicCounts(ctx context.Context) (map[risk.Topic]int, error)
}

// Metrics owns its registry so tests and multiple servers never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	QueriesTotal      *prometheus.CounterVec
	QueryAttempts     prometheus.Histogram
	QueryDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "total",
			Help:      "Questions answered, by outcome",
		}, []string{"outcome"}),
		QueryAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "generate_attempts",
			Help:      "Generation attempts needed per question",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Time to answer a question",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Register subscribes the metric updaters to the bus.
func (m *Metrics) Register(bus Subscriber) {
	bus.Subscribe(events.EventTypeQueryCompleted, m.onQueryCompleted)
}

// RegisterRiskView exports the per-topic user counts of the served database. The
// counts are read on every scrape.
func (m *Metrics) RegisterRiskView(source TopicCounter) error {
	return m.registry.Register(newRiskCollector(source))
}

func (m *Metrics) onQueryCompleted(_ context.Context, event events.Event) error {
	e, ok := event.(*events.QueryCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, event.EventType())
	}

	outcome := "answered"
	if !e.Succeeded {
		outcome = "exhausted"
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryAttempts.Observe(float64(e.Attempts))
	m.QueryDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
	return nil
}

type riskCollector struct {
	source   TopicCounter
	atRisk   *prometheus.Desc
	perTopic *prometheus.Desc
}

func newRiskCollector(source TopicCounter) *riskCollector {
	return &riskCollector{
		source: source,
		atRisk: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "riskview", "users_at_risk"),
			"Users with a risk topic in the risk database", nil, nil),
		perTopic: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "riskview", "users_per_topic"),
			"Users assigned to each risk topic in the risk database", []string{"topic"}, nil),
	}
}

func (c *riskCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.atRisk
	ch <- c.perTopic
}

func (c *riskCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), riskScrapeTimeout)
	defer cancel()

	counts, err := c.source.TopicCounts(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.atRisk, err)
		return
	}

	total := 0
	for _, t := range risk.All() {
		total += counts[t]
		ch <- prometheus.MustNewConstMetric(c.perTopic, prometheus.GaugeValue, float64(counts[t]), t.String())
	}
	ch <- prometheus.MustNewConstMetric(c.atRisk, prometheus.GaugeValue, float64(total))
}
