// Package metrics exposes the engine's Prometheus collectors: request
// throughput/latency, rule selection/action execution counts, store
// operation outcomes by backend, and template/validation failure counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Collector holds every counter/histogram/gauge the engine records (spec
// §7's observability surface).
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge

	ruleSelectionsTotal  *prometheus.CounterVec
	actionExecutionTotal *prometheus.CounterVec

	storeOpsTotal    *prometheus.CounterVec
	storeOpsDuration *prometheus.HistogramVec

	templateFailuresTotal   *prometheus.CounterVec
	validationFailuresTotal *prometheus.CounterVec

	httpHandler fasthttp.RequestHandler
}

// New creates and registers the collector against the default registerer.
func New(namespace string) *Collector {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegistry is New with an explicit registerer, used by tests to
// avoid "duplicate metrics collector registration" across test runs.
func NewWithRegistry(namespace string, registerer prometheus.Registerer) *Collector {
	c := &Collector{}

	c.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of mock HTTP requests handled, by operation and outcome status.",
	}, []string{"operation", "status"})

	c.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "Time taken to handle a mock HTTP request end to end.", Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	c.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "http", Name: "active_requests",
		Help: "Number of requests currently being handled.",
	})

	c.ruleSelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "rules", Name: "selections_total",
		Help: "Total number of times a rule was selected to run for a request.",
	}, []string{"rule_id"})

	c.actionExecutionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "rules", Name: "action_executions_total",
		Help: "Total number of rule actions executed, by action type and outcome.",
	}, []string{"action_type", "outcome"})

	c.storeOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "operations_total",
		Help: "Total number of state store operations, by backend, operation, and outcome.",
	}, []string{"backend", "op", "outcome"})

	c.storeOpsDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
		Help:    "Time taken by state store operations.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"backend", "op"})

	c.templateFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "template", Name: "failures_total",
		Help: "Total number of expression/template evaluation failures.",
	}, []string{"stage"})

	c.validationFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "schema", Name: "validation_failures_total",
		Help: "Total number of request/response schema validation failures.",
	}, []string{"direction"})

	registerer.MustRegister(
		c.requestsTotal, c.requestDuration, c.activeRequests,
		c.ruleSelectionsTotal, c.actionExecutionTotal,
		c.storeOpsTotal, c.storeOpsDuration,
		c.templateFailuresTotal, c.validationFailuresTotal,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return c
}

// ServeHTTP renders the collector as a Prometheus /metrics endpoint.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) { c.httpHandler(ctx) }

func (c *Collector) RecordRequest(operation, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(operation, status).Inc()
	c.requestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func (c *Collector) IncActiveRequests() { c.activeRequests.Inc() }
func (c *Collector) DecActiveRequests() { c.activeRequests.Dec() }

func (c *Collector) RecordRuleSelected(ruleID string) {
	c.ruleSelectionsTotal.WithLabelValues(ruleID).Inc()
}

func (c *Collector) RecordActionExecuted(actionType, outcome string) {
	c.actionExecutionTotal.WithLabelValues(actionType, outcome).Inc()
}

func (c *Collector) RecordStoreOp(backend, op, outcome string, duration time.Duration) {
	c.storeOpsTotal.WithLabelValues(backend, op, outcome).Inc()
	c.storeOpsDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

func (c *Collector) RecordTemplateFailure(stage string) {
	c.templateFailuresTotal.WithLabelValues(stage).Inc()
}

func (c *Collector) RecordValidationFailure(direction string) {
	c.validationFailuresTotal.WithLabelValues(direction).Inc()
}
