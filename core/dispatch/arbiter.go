package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/core/store"
)

// ProviderDirectory resolves provider ids to their current registration.
// *geo.Index satisfies it.
type ProviderDirectory interface {
	Get(id string) (model.Provider, bool)
}

// Arbiter resolves concurrent accept attempts to exactly one winner. It never
// reads then writes: the decision is delegated to the store's atomic
// Transition, so at most one caller ever commits PENDING -> ACCEPTED no
// matter how attempts interleave.
type Arbiter struct {
	store     store.RequestStore
	providers ProviderDirectory
}

// NewArbiter creates an Arbiter over the given store and provider directory.
func NewArbiter(st store.RequestStore, providers ProviderDirectory) *Arbiter {
	return &Arbiter{store: st, providers: providers}
}

// Accept attempts to claim the request for the provider. The bool result
// reports an idempotent repeat: the current claimant calling Accept again on
// its own ACCEPTED request succeeds without state change.
//
// Failure modes: ErrInvalidProvider, ErrNotFound, *AlreadyClaimedError,
// *TerminalStateError.
func (a *Arbiter) Accept(ctx context.Context, requestID, providerID string, at time.Time) (model.ServiceRequest, bool, error) {
	p, ok := a.providers.Get(providerID)
	if !ok || !p.Active {
		return model.ServiceRequest{}, false, ErrInvalidProvider
	}

	req, err := a.store.Transition(ctx, requestID, model.StatusPending, model.StatusAccepted, providerID, at)
	if err == nil {
		return req, false, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return model.ServiceRequest{}, false, ErrNotFound
	}
	ce, ok := store.AsConflict(err)
	if !ok {
		return model.ServiceRequest{}, false, err
	}
	switch {
	case ce.Current == model.StatusAccepted && ce.ClaimantID == providerID:
		// Duplicate call from the winner: report success again.
		cur, gerr := a.store.Get(ctx, requestID)
		if gerr != nil {
			return model.ServiceRequest{}, false, gerr
		}
		return cur, true, nil
	case ce.Current == model.StatusAccepted:
		return model.ServiceRequest{}, false, &AlreadyClaimedError{RequestID: requestID, ClaimantID: ce.ClaimantID}
	case ce.Current.Terminal():
		return model.ServiceRequest{}, false, &TerminalStateError{RequestID: requestID, Status: ce.Current}
	default:
		return model.ServiceRequest{}, false, err
	}
}
