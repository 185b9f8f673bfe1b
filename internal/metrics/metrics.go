package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lookout_probe_latency_seconds",
		Help:    "Wall-clock latency of probe attempts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job_kind", "region"})

	ProbeTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_probe_ticks_total",
		Help: "Probe ticks by final classification.",
	}, []string{"job_kind", "status"})

	TickFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lookout_tick_failures_total",
		Help: "Ticks that failed after both attempts.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_status_transitions_total",
		Help: "Quorum-confirmed monitor status transitions.",
	}, []string{"to"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_notifications_sent_total",
		Help: "Notifications handed to a provider.",
	}, []string{"kind", "provider"})

	NotificationsDeduped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookout_notifications_deduped_total",
		Help: "Notifications skipped by the at-most-once guard.",
	}, []string{"kind", "provider"})
)
