package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/policylifecycle/policy"
)

const namespace = "policy_lifecycle"

// Collector holds the service's Prometheus metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	ruleMatches        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	decisionsRecorded  *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// NewCollector creates and registers all metrics. A nil registry gets a
// fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Policy evaluations by rule version, resulting status and whether a transition was applied.",
		}, []string{"rule_version", "previous_status", "new_status", "transition_applied"}),
		ruleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Rules that matched during evaluation.",
		}, []string{"rule_version", "rule"}),
		evaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in Engine.Evaluate.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		}, []string{"rule_version"}),
		decisionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_recorded_total",
			Help:      "Decision records written to the audit store, by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	registry.MustRegister(
		c.evaluations,
		c.ruleMatches,
		c.evaluationDuration,
		c.decisionsRecorded,
		c.httpRequests,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveEvaluation records one engine evaluation
func (c *Collector) ObserveEvaluation(result *policy.TransitionResult, elapsed time.Duration) {
	version := result.DecisionTrace.RuleVersion
	c.evaluations.WithLabelValues(
		version,
		string(result.PreviousStatus),
		string(result.NewStatus),
		strconv.FormatBool(result.TransitionApplied),
	).Inc()
	for _, id := range result.MatchedRules() {
		c.ruleMatches.WithLabelValues(version, id).Inc()
	}
	c.evaluationDuration.WithLabelValues(version).Observe(elapsed.Seconds())
}

// ObserveRecord counts an audit write; err == nil counts as "ok"
func (c *Collector) ObserveRecord(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.decisionsRecorded.WithLabelValues(outcome).Inc()
}

// ObserveRequest counts a finished HTTP request
func (c *Collector) ObserveRequest(route string, code int) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
