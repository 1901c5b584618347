package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(notificationsSentTotal, notificationsSkippedTotal, devicesPrunedTotal, pushRetriesTotal)
}

var notificationsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Dispatcher outcomes per type/channel/delivered.",
	},
	[]string{"type", "channel", "delivered"},
)

var notificationsSkippedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_skipped_total",
		Help: "Business-rule skips per structured reason.",
	},
	[]string{"type", "reason"},
)

var devicesPrunedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_devices_pruned_total",
		Help: "Devices deleted after a permanent token rejection.",
	},
	[]string{"channel"},
)

var pushRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_retries_total",
		Help: "Push retry records, labeled enqueued/abandoned.",
	},
	[]string{"outcome"},
)

func IncNotificationSent(notifType, channel string, delivered bool) {
	notificationsSentTotal.WithLabelValues(norm(notifType), norm(channel), strconv.FormatBool(delivered)).Inc()
}

func IncNotificationSkipped(notifType, reason string) {
	notificationsSkippedTotal.WithLabelValues(norm(notifType), norm(reason)).Inc()
}

func IncDevicePruned(channel string) {
	devicesPrunedTotal.WithLabelValues(norm(channel)).Inc()
}

func IncPushRetry(outcome string) {
	pushRetriesTotal.WithLabelValues(norm(outcome)).Inc()
}
