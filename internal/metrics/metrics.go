// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry bundles every collector the API updates.  It owns its own
// prometheus.Registry so tests can build as many as they like.
type Registry struct {
	Reg *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EmailsSentTotal     *prometheus.CounterVec
	TokensIssuedTotal   *prometheus.CounterVec
	TokenRedeemTotal    *prometheus.CounterVec
	AuditEventsTotal    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		Reg: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "path"},
		),
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emails_sent_total",
				Help: "Transactional emails handed to the SMTP relay",
			},
			[]string{"type", "status"},
		),
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_issued_total",
				Help: "Verification and reset tokens issued",
			},
			[]string{"kind"},
		),
		TokenRedeemTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_redemptions_total",
				Help: "Token redemption attempts by outcome",
			},
			[]string{"kind", "outcome"},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Audit records appended to the logins collection",
			},
			[]string{"action"},
		),
	}
	r.Reg.MustRegister(
		r.HTTPRequestsTotal,
		r.HTTPRequestDuration,
		r.EmailsSentTotal,
		r.TokensIssuedTotal,
		r.TokenRedeemTotal,
		r.AuditEventsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}
