package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus counters. A fresh registerer per
// instance keeps tests isolated.
type Metrics struct {
	Events             prometheus.Counter
	RateLimited        prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	Completions        prometheus.Counter
	CompletionFailures prometheus.Counter
	HistoryFailures    prometheus.Counter
	SweepEvictions     prometheus.Counter
}

// NewMetrics creates and registers the bot counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_events_total",
			Help: "Inbound mention and DM events received.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_rate_limited_total",
			Help: "Requests denied by the per-user rate limiter.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_context_cache_hits_total",
			Help: "Thread context served from cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_context_cache_misses_total",
			Help: "Thread context rebuilt from the messaging platform.",
		}),
		Completions: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_completions_total",
			Help: "Successful LLM completions.",
		}),
		CompletionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_completion_failures_total",
			Help: "LLM completion calls that failed or timed out.",
		}),
		HistoryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_history_failures_total",
			Help: "Thread history fetches that failed.",
		}),
		SweepEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "threadpilot_sweep_evictions_total",
			Help: "Context entries removed by the TTL sweep.",
		}),
	}
}
