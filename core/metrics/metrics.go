package metrics

import (
	"time"

	"github.com/tyreaid/roadaid/core/model"
)

// AcceptOutcome represents one arbitrated accept attempt to be recorded.
type AcceptOutcome struct {
	RequestID  string
	ProviderID string
	Priority   model.Priority
	// Outcome is one of accepted, idempotent, already_claimed,
	// terminal_state, invalid_provider, not_found.
	Outcome string
	Latency time.Duration
	Time    time.Time
}

// MetricsSink records accept outcomes for observability purposes.
type MetricsSink interface {
	RecordAcceptOutcome(outcomes []AcceptOutcome) error
}

// RequestCreatedEvent captures a newly persisted request.
type RequestCreatedEvent struct {
	RequestID string
	Priority  model.Priority
	Time      time.Time
}

// RequestCreatedRecorder records request creations.
type RequestCreatedRecorder interface {
	RecordRequestCreated(ev RequestCreatedEvent) error
}

// RequestClosedEvent captures a completion, cancellation or expiry.
type RequestClosedEvent struct {
	RequestID string
	Status    model.Status
	Expired   bool
	// Open is the time the request spent before closing.
	Open time.Duration
	Time time.Time
}

// RequestClosedRecorder records closed requests.
type RequestClosedRecorder interface {
	RecordRequestClosed(ev RequestClosedEvent) error
}

// PendingSizeRecorder records the size of the pending set after a change.
type PendingSizeRecorder interface {
	RecordPendingSize(size int) error
}

// ExpiryRecorder records the number of requests closed by a TTL sweep.
type ExpiryRecorder interface {
	RecordExpired(count int) error
}

// NopSink discards every record.
type NopSink struct{}

// RecordAcceptOutcome implements MetricsSink.
func (NopSink) RecordAcceptOutcome([]AcceptOutcome) error { return nil }
