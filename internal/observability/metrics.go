// Package observability exposes Prometheus instrumentation for the
// notification engine.  Label cardinality stays bounded: statuses come
// from the provider's closed vocabulary and rejection reasons from the
// engine's fixed error taxonomy.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// notificationsProcessed counts successfully applied notifications by
	// canonical provider status.
	notificationsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notifications_processed_total",
			Help: "Total number of payment notifications applied.",
		},
		[]string{"status"},
	)

	// notificationsRejected counts client rejections by reason
	// (status_mismatch, duplicate_status, order_not_found).
	notificationsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notifications_rejected_total",
			Help: "Total number of payment notifications rejected without mutation.",
		},
		[]string{"reason"},
	)

	// reconcileDuration records end-to-end processing time per delivery,
	// including the provider status call and the database transaction.
	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_reconcile_duration_seconds",
			Help:    "Duration of payment notification reconciliation in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(notificationsProcessed, notificationsRejected, reconcileDuration)
}

// NotificationProcessed records one applied notification.
func NotificationProcessed(status string) {
	notificationsProcessed.WithLabelValues(status).Inc()
}

// NotificationRejected records one client rejection.
func NotificationRejected(reason string) {
	notificationsRejected.WithLabelValues(reason).Inc()
}

// ObserveReconcile records the processing duration of one delivery.
func ObserveReconcile(d time.Duration) {
	reconcileDuration.Observe(d.Seconds())
}
