package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every custom collector the API and the worker report.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Auth Metrics
	RegistrationsTotal *prometheus.CounterVec
	LoginsTotal        *prometheus.CounterVec
	TokensRevokedTotal prometheus.Counter

	// Post Metrics
	PostsCreatedTotal   prometheus.Counter
	PostsUpdatedTotal   prometheus.Counter
	PostUpdatesDenied   prometheus.Counter
	UploadBytesTotal    prometheus.Counter
	CoversDeletedTotal  *prometheus.CounterVec
	EventProcessingTime *prometheus.HistogramVec

	// Cache (Redis) Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Queue (RabbitMQ) Metrics
	QueueMessagesPublished *prometheus.CounterVec
	QueueMessagesConsumed  *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"result"}, // success, duplicate, error
		),

		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"}, // success, invalid_credentials, error
		),

		TokensRevokedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tokens_revoked_total",
				Help: "Total number of session tokens revoked on logout",
			},
		),

		PostsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posts_created_total",
				Help: "Total number of posts created",
			},
		),

		PostsUpdatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posts_updated_total",
				Help: "Total number of posts updated",
			},
		),

		PostUpdatesDenied: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "post_updates_denied_total",
				Help: "Total number of post updates rejected because the caller is not the author",
			},
		),

		UploadBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "upload_bytes_total",
				Help: "Total bytes of cover images stored",
			},
		),

		CoversDeletedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covers_deleted_total",
				Help: "Total number of cover files removed",
			},
			[]string{"reason"}, // replaced, orphaned
		),

		EventProcessingTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "post_event_processing_duration_seconds",
				Help:    "Duration of post event processing in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"event_type"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),

		QueueMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_published_total",
				Help: "Total number of messages published to the queue",
			},
			[]string{"queue_name"},
		),

		QueueMessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_consumed_total",
				Help: "Total number of messages consumed from the queue",
			},
			[]string{"queue_name"},
		),
	}
}

// GlobalMetrics is the process-wide instance registered on the default registry.
var GlobalMetrics *Metrics

// InitMetrics initializes GlobalMetrics
func InitMetrics() *Metrics {
	GlobalMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return GlobalMetrics
}
