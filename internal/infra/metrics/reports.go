package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(reportsTotal, remindersTotal, progressRecomputedTotal) }

var reportsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weekly_reports_total",
		Help: "Weekly report sweep outcomes (sent/retried/skipped_window).",
	},
	[]string{"outcome"},
)

var remindersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "weekly_reminders_total",
		Help: "Weekly reminder outcomes (sent/skipped).",
	},
	[]string{"outcome"},
)

var progressRecomputedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "weekly_progress_recomputed_total",
		Help: "Weekly progress rows recomputed by the evaluator sweep.",
	},
)

func IncReport(outcome string)   { reportsTotal.WithLabelValues(norm(outcome)).Inc() }
func IncReminder(outcome string) { remindersTotal.WithLabelValues(norm(outcome)).Inc() }
func IncProgressRecomputed()     { progressRecomputedTotal.Inc() }
