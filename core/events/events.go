package events

import (
	"time"

	"github.com/tyreaid/roadaid/core/model"
)

// RequestCreatedEvent is published when a new request is persisted as PENDING.
type RequestCreatedEvent struct {
	Request model.ServiceRequest
}

// RequestAcceptedEvent is published when a provider wins the accept race.
// Idempotent reports whether this was a repeat call by the existing claimant.
type RequestAcceptedEvent struct {
	Request    model.ServiceRequest
	ProviderID string
	Latency    time.Duration
	Idempotent bool
}

// AcceptRejectedEvent is published for each accept attempt that lost.
type AcceptRejectedEvent struct {
	RequestID  string
	ProviderID string
	Reason     string
	Latency    time.Duration
}

// RequestClosedEvent is published on completion or cancellation.
type RequestClosedEvent struct {
	Request model.ServiceRequest
	ActorID string
	Expired bool
}

// ProviderMovedEvent is published when a provider relocates or changes its
// active flag.
type ProviderMovedEvent struct {
	Provider model.Provider
}
