// Package metrics holds the collector's prometheus registry
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campaign_collector"

// Metrics is safe for concurrent use; a nil *Metrics records nothing
type Metrics struct {
	reg *prometheus.Registry

	resolutions *prometheus.CounterVec
	leads       *prometheus.CounterVec
	intake      *prometheus.CounterVec
	filterFails *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// New builds a private registry with the go and process collectors attached
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Page evaluations by session outcome and resolved medium.",
		}, []string{"outcome", "medium"}),
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Lead sends by transport and result.",
		}, []string{"transport", "result"}),
		intake: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_total",
			Help:      "Leads received by the first-party endpoint.",
		}, []string{"result"}),
		filterFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_failures_total",
			Help:      "Value filters that panicked, by field.",
		}, []string{"field"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.resolutions, m.leads, m.intake, m.filterFails, m.requests)
	return m
}

// Resolution counts one page evaluation; medium may be empty for a continued session
func (m *Metrics) Resolution(outcome, medium string) {
	if m == nil {
		return
	}
	if medium == "" {
		medium = "none"
	}
	m.resolutions.WithLabelValues(outcome, medium).Inc()
}

// Lead counts a lead hand-off (transport "send") or a failed delivery (beacon or http)
func (m *Metrics) Lead(transport string, ok bool) {
	if m == nil {
		return
	}
	m.leads.WithLabelValues(transport, result(ok)).Inc()
}

// Intake counts one lead received by the intake endpoint
func (m *Metrics) Intake(ok bool) {
	if m == nil {
		return
	}
	m.intake.WithLabelValues(result(ok)).Inc()
}

// FilterFailure counts a filter that panicked for field
func (m *Metrics) FilterFailure(field string) {
	if m == nil {
		return
	}
	m.filterFails.WithLabelValues(field).Inc()
}

// ObserveHTTP matches middleware.AccessLogOptions.Observe
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
