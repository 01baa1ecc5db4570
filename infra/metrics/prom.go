package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/tyreaid/roadaid/core/metrics"
)

// PromSink records dispatch engine events in Prometheus metrics.
type PromSink struct {
	outcomes *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	created  *prometheus.CounterVec
	closed   *prometheus.CounterVec
	expired  prometheus.Counter
	pending  prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	// Rejected attempts have no reliable priority, so outcomes are labelled
	// by outcome only and creations carry the priority dimension.
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_accept_attempts_total",
		Help: "Total number of arbitrated accept attempts by outcome",
	}, []string{"outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_accept_latency_seconds",
		Help:    "Time spent arbitrating an accept attempt",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_requests_created_total",
		Help: "Total number of requests submitted",
	}, []string{"priority"})
	closed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_requests_closed_total",
		Help: "Total number of requests closed",
	}, []string{"status", "expired"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_requests_expired_total",
		Help: "Total number of pending requests cancelled by the TTL sweep",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_pending_requests",
		Help: "Number of requests currently waiting for a provider",
	})

	if err := reg.Register(outcomes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			outcomes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(created); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			created = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(closed); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			closed = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(expired); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			expired = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(pending); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			pending = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		outcomes: outcomes,
		latency:  latency,
		created:  created,
		closed:   closed,
		expired:  expired,
		pending:  pending,
	}, nil
}

// RecordAcceptOutcome increments the counter and observes the latency for
// each arbitrated attempt.
func (s *PromSink) RecordAcceptOutcome(outcomes []coremetrics.AcceptOutcome) error {
	for _, o := range outcomes {
		s.outcomes.WithLabelValues(o.Outcome).Inc()
		s.latency.WithLabelValues(o.Outcome).Observe(o.Latency.Seconds())
	}
	return nil
}

// RecordRequestCreated counts a submission under its priority.
func (s *PromSink) RecordRequestCreated(ev coremetrics.RequestCreatedEvent) error {
	s.created.WithLabelValues(ev.Priority.String()).Inc()
	return nil
}

// RecordRequestClosed counts a closure under its terminal status.
func (s *PromSink) RecordRequestClosed(ev coremetrics.RequestClosedEvent) error {
	s.closed.WithLabelValues(ev.Status.String(), strconv.FormatBool(ev.Expired)).Inc()
	return nil
}

// RecordExpired adds the sweep's count to the expiry counter.
func (s *PromSink) RecordExpired(count int) error {
	s.expired.Add(float64(count))
	return nil
}

// RecordPendingSize sets the gauge to the current pending set size.
func (s *PromSink) RecordPendingSize(size int) error {
	if s.pending != nil {
		s.pending.Set(float64(size))
	}
	return nil
}
