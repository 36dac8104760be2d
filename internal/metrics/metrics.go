// Package metrics exposes relay counters to Prometheus. The collector
// reads its providers at scrape time; nothing in the hot path touches a
// metrics registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DecisionCounter exposes routing decision totals per outcome.
type DecisionCounter interface {
	DecisionCounts() map[string]uint64
}

// PushStatsProvider exposes push dispatch totals.
type PushStatsProvider interface {
	Stats() (sent, failed uint64)
}

// Collector is a prometheus.Collector that gathers relay metrics at scrape time.
type Collector struct {
	decisions DecisionCounter
	pushes    PushStatsProvider
	startTime time.Time

	decisionsDesc  *prometheus.Desc
	pushSentDesc   *prometheus.Desc
	pushFailedDesc *prometheus.Desc
	uptimeDesc     *prometheus.Desc
}

// NewCollector creates a metrics collector. Any provider may be nil if
// unavailable.
func NewCollector(decisions DecisionCounter, pushes PushStatsProvider, startTime time.Time) *Collector {
	return &Collector{
		decisions: decisions,
		pushes:    pushes,
		startTime: startTime,

		decisionsDesc: prometheus.NewDesc(
			"callbridge_routing_decisions_total",
			"Total routing decisions made, by outcome",
			[]string{"outcome"}, nil,
		),
		pushSentDesc: prometheus.NewDesc(
			"callbridge_push_sent_total",
			"Total wake-up notifications delivered",
			nil, nil,
		),
		pushFailedDesc: prometheus.NewDesc(
			"callbridge_push_failed_total",
			"Total wake-up notifications that failed to deliver",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callbridge_uptime_seconds",
			"Seconds since the relay process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.decisionsDesc
	ch <- c.pushSentDesc
	ch <- c.pushFailedDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.decisions != nil {
		for outcome, count := range c.decisions.DecisionCounts() {
			ch <- prometheus.MustNewConstMetric(
				c.decisionsDesc, prometheus.CounterValue,
				float64(count), outcome,
			)
		}
	}

	if c.pushes != nil {
		sent, failed := c.pushes.Stats()
		ch <- prometheus.MustNewConstMetric(c.pushSentDesc, prometheus.CounterValue, float64(sent))
		ch <- prometheus.MustNewConstMetric(c.pushFailedDesc, prometheus.CounterValue, float64(failed))
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}

// Handler returns an HTTP handler serving the collector on its own
// registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
