// Package observability holds the prometheus instrumentation for the pool
// server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the server exports. Registered against an
// explicit registerer so tests can use a private registry.
type Metrics struct {
	DrawsTotal         *prometheus.CounterVec
	ContributionsTotal *prometheus.CounterVec
	EventsFannedTotal  *prometheus.CounterVec
	SinkFailuresTotal  prometheus.Counter
	DrawLocksExpired   prometheus.Counter
	ConnectedSessions  prometheus.Gauge
	ProcessRSSBytes    prometheus.Gauge
	ProcessCPUPercent  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DrawsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paluwagan_draws_total",
				Help: "Total number of draw requests by outcome",
			},
			[]string{"outcome"},
		),
		ContributionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paluwagan_contributions_total",
				Help: "Total number of contribution recordings by outcome",
			},
			[]string{"outcome"},
		),
		EventsFannedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paluwagan_events_fanned_total",
				Help: "Total number of domain events fanned out by kind",
			},
			[]string{"kind"},
		),
		SinkFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "paluwagan_sink_failures_total",
				Help: "Total number of sink deliveries that failed or timed out",
			},
		),
		DrawLocksExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "paluwagan_draw_locks_expired_total",
				Help: "Total number of drawing locks reclaimed by the janitor",
			},
		),
		ConnectedSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "paluwagan_connected_sessions",
				Help: "Number of live websocket sessions",
			},
		),
		ProcessRSSBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "paluwagan_process_rss_bytes",
				Help: "Resident memory of the pool server process",
			},
		),
		ProcessCPUPercent: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "paluwagan_process_cpu_percent",
				Help: "CPU usage of the pool server process",
			},
		),
	}
}
