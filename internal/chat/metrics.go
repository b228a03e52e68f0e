// Prometheus collectors for the realtime core.
//
// Label cardinality stays bounded: kind is one of direct|group|assistant and
// the error codes come from the fixed taxonomy in errors.go.
package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	// chatOnline gauges the number of users with a live connection.
	chatOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Current number of users with a live realtime connection.",
		},
	)

	// chatMessagesRouted counts successfully routed messages by kind.
	chatMessagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_routed_total",
			Help: "Total number of messages accepted and routed.",
		},
		[]string{"kind"},
	)

	// chatDuplicatesDropped counts messages dropped by the dedup cache.
	chatDuplicatesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_duplicates_dropped_total",
			Help: "Total number of duplicate messages silently dropped.",
		},
	)

	// chatErrorsSent counts error events by taxonomy code.
	chatErrorsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_errors_sent_total",
			Help: "Total number of error events pushed to clients.",
		},
		[]string{"code"},
	)

	// chatDelegateFailures counts assistant delegate errors that degraded to
	// the fallback reply.
	chatDelegateFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_assistant_delegate_failures_total",
			Help: "Total number of assistant delegate failures degraded to a fallback reply.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatOnline,
		chatMessagesRouted,
		chatDuplicatesDropped,
		chatErrorsSent,
		chatDelegateFailures,
	)
}
