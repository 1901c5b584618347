package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobDurationSeconds, jobsReclaimedTotal) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reflection_jobs_processed_total",
		Help: "Total number of reflection jobs processed, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "reflection_job_duration_seconds",
		Help:    "End-to-end processing time of one reflection job.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
)

var jobsReclaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "reflection_jobs_reclaimed_total",
		Help: "Jobs found stuck in processing and re-queued by the staleness sweep.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveJobDuration(seconds float64) {
	jobDurationSeconds.Observe(seconds)
}

func IncJobsReclaimed(n int) {
	jobsReclaimedTotal.Add(float64(n))
}
