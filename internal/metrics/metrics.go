package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide registry plus the counters the hot path and
// the analytics pipeline report into. Created once at startup and passed as
// an explicit collaborator.
type Metrics struct {
	registry *prometheus.Registry

	redirects        *prometheus.CounterVec
	hitsPublished    prometheus.Counter
	hitsDropped      prometheus.Counter
	hitsApplied      prometheus.Counter
	hitsFailed       prometheus.Counter
	hitsDeadLettered prometheus.Counter
	urlsCreated      prometheus.Counter
}

// New creates the registry with process and Go runtime collectors plus the
// service counters.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "Redirects served, by HTTP status.",
		}, []string{"status"}),
		hitsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_hit_events_published_total",
			Help: "Hit events accepted by the event bus.",
		}),
		hitsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_hit_events_dropped_total",
			Help: "Hit events dropped after publish retries were exhausted.",
		}),
		hitsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_hits_applied_total",
			Help: "Hit events applied to the analytics store.",
		}),
		hitsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_hits_failed_total",
			Help: "Hit events that failed application and were redelivered.",
		}),
		hitsDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_hits_dead_lettered_total",
			Help: "Hit events routed to the dead-letter sink.",
		}),
		urlsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "shortlink_urls_created_total",
			Help: "Short URLs created.",
		}),
	}
}

// RedirectServed implements the redirect dispatcher's metrics hook.
func (m *Metrics) RedirectServed(status int) {
	m.redirects.WithLabelValues(strconv.Itoa(status)).Inc()
}

// HitPublished counts an accepted publish.
func (m *Metrics) HitPublished() { m.hitsPublished.Inc() }

// HitDropped counts a publish abandoned after retries.
func (m *Metrics) HitDropped() { m.hitsDropped.Inc() }

// HitApplied implements the analytics consumer's metrics hook.
func (m *Metrics) HitApplied() { m.hitsApplied.Inc() }

// HitFailed implements the analytics consumer's metrics hook.
func (m *Metrics) HitFailed() { m.hitsFailed.Inc() }

// HitDeadLettered implements the analytics consumer's metrics hook.
func (m *Metrics) HitDeadLettered() { m.hitsDeadLettered.Inc() }

// URLCreated counts a created short URL.
func (m *Metrics) URLCreated() { m.urlsCreated.Inc() }

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type jsonMetric struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

type jsonFamily struct {
	Name    string       `json:"name"`
	Help    string       `json:"help,omitempty"`
	Type    string       `json:"type"`
	Metrics []jsonMetric `json:"metrics"`
}

// JSONHandler mirrors the gathered counter and gauge families as JSON.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		families, err := m.registry.Gather()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}

		out := make([]jsonFamily, 0, len(families))

		for _, family := range families {
			entry := jsonFamily{
				Name: family.GetName(),
				Help: family.GetHelp(),
				Type: family.GetType().String(),
			}

			for _, metric := range family.GetMetric() {
				labels := make(map[string]string, len(metric.GetLabel()))
				for _, pair := range metric.GetLabel() {
					labels[pair.GetName()] = pair.GetValue()
				}

				var value float64

				switch {
				case metric.GetCounter() != nil:
					value = metric.GetCounter().GetValue()
				case metric.GetGauge() != nil:
					value = metric.GetGauge().GetValue()
				case metric.GetUntyped() != nil:
					value = metric.GetUntyped().GetValue()
				default:
					continue
				}

				entry.Metrics = append(entry.Metrics, jsonMetric{Labels: labels, Value: value})
			}

			if len(entry.Metrics) > 0 {
				out = append(out, entry)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
