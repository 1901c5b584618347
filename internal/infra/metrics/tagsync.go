package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(tagSyncTotal) }

var tagSyncTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tag_sync_total",
		Help: "Tag sync sweep outcomes (pushed/skipped_hash/failed).",
	},
	[]string{"outcome"},
)

func IncTagSync(outcome string) { tagSyncTotal.WithLabelValues(norm(outcome)).Inc() }
