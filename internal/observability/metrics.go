package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects core counters for the coordination engine.
type Metrics struct {
	runs     *prometheus.CounterVec
	shards   *prometheus.CounterVec
	cacheOps *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshard_runs_total",
		Help: "Total runs by overall status.",
	}, []string{"status"})
	shards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshard_shards_total",
		Help: "Total shard executions by status.",
	}, []string{"status"})
	cacheOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshard_cache_ops_total",
		Help: "Total blob cache operations by outcome.",
	}, []string{"op"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshard_failures_total",
		Help: "Total best-effort failures by type.",
	}, []string{"type"})

	runs = registerCounterVec(registerer, runs)
	shards = registerCounterVec(registerer, shards)
	cacheOps = registerCounterVec(registerer, cacheOps)
	failures = registerCounterVec(registerer, failures)

	return &Metrics{
		runs:     runs,
		shards:   shards,
		cacheOps: cacheOps,
		failures: failures,
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) IncRun(status string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *Metrics) IncShard(status string) {
	if m == nil || m.shards == nil {
		return
	}
	m.shards.WithLabelValues(status).Inc()
}

func (m *Metrics) IncCacheOp(op string) {
	if m == nil || m.cacheOps == nil {
		return
	}
	m.cacheOps.WithLabelValues(op).Inc()
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}
