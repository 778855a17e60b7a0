// Package metrics collects and exposes Prometheus metrics for the auth flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records the service's counters.
type Collector struct {
	logins      *prometheus.CounterVec
	redemptions *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	syncEvents  *prometheus.CounterVec
	httpStatus  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authhub_logins_total",
			Help: "Completed login handoffs by result.",
		}, []string{"result"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authhub_code_redemptions_total",
			Help: "Exchange code redemption attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authhub_token_refreshes_total",
			Help: "Access token refresh attempts by result.",
		}, []string{"result"}),
		syncEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authhub_identity_sync_total",
			Help: "Identity sync consumer outcomes.",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authhub_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(c.logins, c.redemptions, c.refreshes, c.syncEvents, c.httpStatus)
	return c
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRedemption(result string) {
	c.redemptions.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRefresh(result string) {
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSyncOutcome(outcome string) {
	c.syncEvents.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordHTTPStatus(code string) {
	c.httpStatus.WithLabelValues(code).Inc()
}
