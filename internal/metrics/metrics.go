package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DepthFunc reports the current fresh and retry lane depths.
type DepthFunc func() (fresh, retry int)

// Metrics groups all Prometheus instruments used by the notifier.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesPublished prometheus.Counter
	DeliveriesSent    *prometheus.CounterVec
	DeliveriesFailed  *prometheus.CounterVec
	DeliveryRetries   *prometheus.CounterVec
	DeliveryLatency   *prometheus.HistogramVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct. Queue depth gauges are sampled from
// depths at scrape time.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer, depths DepthFunc) *Metrics {
	m := &Metrics{
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "Total number of messages accepted on the topic.",
		}),

		DeliveriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_sent_total",
			Help: "Total number of deliveries acknowledged by the endpoint.",
		}, []string{"subscription"}),

		DeliveriesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deliveries_failed_total",
			Help: "Total number of permanently failed deliveries (retries exhausted).",
		}, []string{"subscription"}),

		DeliveryRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_retries_total",
			Help: "Total number of delivery attempts scheduled for retry.",
		}, []string{"subscription"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "delivery_latency_seconds",
			Help:    "Latency from dequeue to endpoint acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"subscription"}),
	}

	freshDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "queue_depth_fresh",
		Help: "Current number of first-attempt deliveries waiting in the queue.",
	}, func() float64 {
		fresh, _ := depths()
		return float64(fresh)
	})
	retryDepth := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "queue_depth_retry",
		Help: "Current number of retried deliveries waiting in the queue.",
	}, func() float64 {
		_, retry := depths()
		return float64(retry)
	})

	reg.MustRegister(
		m.MessagesPublished,
		m.DeliveriesSent,
		m.DeliveriesFailed,
		m.DeliveryRetries,
		m.DeliveryLatency,
		freshDepth,
		retryDepth,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onDelivered func(string, time.Duration),
	onFailed func(string),
	onRetry func(string),
) {
	onDelivered = func(sub string, latency time.Duration) {
		m.DeliveriesSent.WithLabelValues(sub).Inc()
		m.DeliveryLatency.WithLabelValues(sub).Observe(latency.Seconds())
	}
	onFailed = func(sub string) {
		m.DeliveriesFailed.WithLabelValues(sub).Inc()
	}
	onRetry = func(sub string) {
		m.DeliveryRetries.WithLabelValues(sub).Inc()
	}
	return
}

// PublishHook returns the callback expected by service.Options.OnPublished.
func (m *Metrics) PublishHook() func() {
	return m.MessagesPublished.Inc
}
