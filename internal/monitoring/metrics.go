// Package monitoring exposes the Prometheus metrics of the allocation
// engine. Metrics are registered via promauto at init time and served
// on /metrics by the router.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_lock_wait_seconds",
			Help:    "Time spent waiting for the event allocation lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	lockTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_lock_timeouts_total",
			Help: "Lock acquisitions that hit the bounded wait",
		},
	)

	allocationDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_denials_total",
			Help: "Allocation attempts denied, by reason",
		},
		[]string{"reason"},
	)

	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders successfully placed",
		},
	)

	holdsReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_holds_reclaimed_total",
			Help: "Expired cart holds deleted by the reclaimer",
		},
	)
)

// ObserveLockWait records how long one lock acquisition waited.
func ObserveLockWait(d time.Duration) { lockWaitSeconds.Observe(d.Seconds()) }

// LockTimeout counts a bounded-wait expiry.
func LockTimeout() { lockTimeouts.Inc() }

// DenyAllocation counts a denied allocation attempt.
func DenyAllocation(reason string) { allocationDenials.WithLabelValues(reason).Inc() }

// OrderCreated counts a successfully placed order.
func OrderCreated() { ordersCreated.Inc() }

// HoldsReclaimed counts holds deleted by one reclaimer sweep.
func HoldsReclaimed(n int64) { holdsReclaimed.Add(float64(n)) }
