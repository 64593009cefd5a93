package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Event bus metrics
	EventsPublished    *prometheus.CounterVec
	SubscriberFailures *prometheus.CounterVec

	// Room allocation metrics
	RoomClaims   *prometheus.CounterVec
	RoomReleases prometheus.Counter

	// Notification metrics
	NotificationsCreated    *prometheus.CounterVec
	NotificationsDispatched *prometheus.CounterVec
	DispatchLatency         prometheus.Histogram
	NotificationQueueSize   prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec
}

// New creates all application metrics and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events published on the bus",
		}, []string{"event_type"}),
		SubscriberFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "subscriber_failures_total",
			Help:      "Total number of subscriber deliveries that failed or panicked",
		}, []string{"event_type"}),

		RoomClaims: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "claims_total",
			Help:      "Room claim attempts by result",
		}, []string{"result"}),
		RoomReleases: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rooms",
			Name:      "releases_total",
			Help:      "Total number of rooms released",
		}),

		NotificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total number of notifications stored",
		}, []string{"kind"}),
		NotificationsDispatched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Notification dispatch outcomes",
		}, []string{"status"}),
		DispatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one batch of notifications",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		NotificationQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_size",
			Help:      "Pending notifications picked up by the last dispatch",
		}),

		RedisOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),
	}
}
