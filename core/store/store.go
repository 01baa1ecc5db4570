package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tyreaid/roadaid/core/model"
)

// ErrNotFound reports an unknown request id.
var ErrNotFound = errors.New("store: request not found")

// ConflictError is returned when a conditional transition finds the request
// in a different state than expected. It carries the observed state so the
// caller can classify the loss (already claimed, terminal, ...).
type ConflictError struct {
	Current    model.Status
	ClaimantID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: request is %s, transition rejected", e.Current)
}

// AsConflict unwraps a ConflictError from err, if present.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	return ce, errors.As(err, &ce)
}

// RequestStore is the durable home of every ServiceRequest. Transition is the
// only way status, claimant and the accept/close timestamps change: it commits
// atomically against the current status, so two racing callers can never both
// succeed on the same request. No cross-request locks are ever held.
type RequestStore interface {
	// Create persists a new request. The caller supplies a fully populated
	// record (id, timestamps); Create fails on a duplicate id.
	Create(ctx context.Context, req model.ServiceRequest) error

	// Get returns the request or ErrNotFound.
	Get(ctx context.Context, id string) (model.ServiceRequest, error)

	// ListByStatus returns every request currently in the given status,
	// ordered by creation time ascending.
	ListByStatus(ctx context.Context, st model.Status) ([]model.ServiceRequest, error)

	// ListByClaimant returns every request claimed by the provider, newest
	// first, regardless of status.
	ListByClaimant(ctx context.Context, providerID string) ([]model.ServiceRequest, error)

	// Transition atomically moves the request from `from` to `to` and returns
	// the updated record. When to is ACCEPTED the claimant and accepted_at are
	// set; when to is terminal closed_at is set. If the request is not in
	// `from` at commit time a *ConflictError is returned and nothing changes.
	Transition(ctx context.Context, id string, from, to model.Status, claimantID string, at time.Time) (model.ServiceRequest, error)
}
