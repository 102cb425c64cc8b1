package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the campaign backend.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// Campaign lifecycle
	TransitionsTotal *prometheus.CounterVec
	StakesTotal      prometheus.Counter
	TokensStaked     prometheus.Counter
	DrawsTotal       prometheus.Counter

	// Chain worker
	ChainJobsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squdy_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "squdy_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squdy_api_errors_total",
				Help: "Total number of API error responses",
			},
			[]string{"type"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squdy_campaign_transitions_total",
				Help: "Campaign status transitions",
			},
			[]string{"from", "to"},
		),
		StakesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squdy_stakes_total",
			Help: "Accepted stakes",
		}),
		TokensStaked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squdy_tokens_staked_total",
			Help: "Tokens staked across all campaigns",
		}),
		DrawsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "squdy_draws_total",
			Help: "Winner draws performed",
		}),
		ChainJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squdy_chain_jobs_total",
				Help: "Chain jobs processed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.TransitionsTotal,
		m.StakesTotal,
		m.TokensStaked,
		m.DrawsTotal,
		m.ChainJobsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Stake(amount float64) {
	if m == nil {
		return
	}
	m.StakesTotal.Inc()
	m.TokensStaked.Add(amount)
}

func (m *Metrics) Draw() {
	if m == nil {
		return
	}
	m.DrawsTotal.Inc()
}

func (m *Metrics) ChainJob(kind, outcome string) {
	if m == nil {
		return
	}
	m.ChainJobsTotal.WithLabelValues(kind, outcome).Inc()
}
