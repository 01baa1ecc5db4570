package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/tyreaid/roadaid/core/logger"
	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/core/store"
)

// transitions is the full state machine. PENDING -> ACCEPTED is reserved for
// the Arbiter; the Lifecycle handles every closing transition.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusAccepted, model.StatusCancelled},
	model.StatusAccepted: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Lifecycle enforces the request state machine for everything past
// acceptance: completion, cancellation and TTL expiry. Rejected attempts are
// logged and surfaced, never silently ignored.
type Lifecycle struct {
	store store.RequestStore
	log   logger.Logger
}

// NewLifecycle creates a Lifecycle over the store.
func NewLifecycle(st store.RequestStore, log logger.Logger) *Lifecycle {
	return &Lifecycle{store: st, log: log}
}

// Complete marks the request done. Only the claimant provider may complete,
// and only from ACCEPTED.
func (l *Lifecycle) Complete(ctx context.Context, requestID, providerID string, at time.Time) (model.ServiceRequest, error) {
	req, err := l.get(ctx, requestID)
	if err != nil {
		return model.ServiceRequest{}, err
	}
	if req.Status != model.StatusAccepted {
		return model.ServiceRequest{}, l.reject(requestID, req.Status, model.StatusCompleted)
	}
	if req.ClaimantID != providerID {
		return model.ServiceRequest{}, ErrNotAuthorized
	}
	return l.commit(ctx, requestID, model.StatusAccepted, model.StatusCompleted, at)
}

// Cancel withdraws the request. The requester may cancel at any non-terminal
// point; the claimant may back out of its own ACCEPTED request. The claimant
// id is retained on the record for audit.
func (l *Lifecycle) Cancel(ctx context.Context, requestID, actorID string, at time.Time) (model.ServiceRequest, error) {
	req, err := l.get(ctx, requestID)
	if err != nil {
		return model.ServiceRequest{}, err
	}
	if req.Status.Terminal() {
		return model.ServiceRequest{}, l.reject(requestID, req.Status, model.StatusCancelled)
	}
	// ClaimantID is empty on a PENDING request; an empty actor must not
	// match it.
	if actorID == "" || (actorID != req.RequesterID && actorID != req.ClaimantID) {
		return model.ServiceRequest{}, ErrNotAuthorized
	}
	return l.commit(ctx, requestID, req.Status, model.StatusCancelled, at)
}

// ExpirePending cancels every PENDING request created before the cutoff.
// Losing an expiry race to a concurrent accept is the expected outcome and is
// skipped, not reported. Returns the cancelled requests.
func (l *Lifecycle) ExpirePending(ctx context.Context, ttl time.Duration, now time.Time) ([]model.ServiceRequest, error) {
	pending, err := l.store.ListByStatus(ctx, model.StatusPending)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-ttl)
	var expired []model.ServiceRequest
	for _, req := range pending {
		if req.CreatedAt.After(cutoff) {
			continue
		}
		cancelled, err := l.store.Transition(ctx, req.ID, model.StatusPending, model.StatusCancelled, "", now)
		if err != nil {
			if _, conflict := store.AsConflict(err); conflict {
				continue
			}
			return expired, err
		}
		l.log.Infof("expired pending request %s after %s", req.ID, ttl)
		expired = append(expired, cancelled)
	}
	return expired, nil
}

func (l *Lifecycle) get(ctx context.Context, requestID string) (model.ServiceRequest, error) {
	req, err := l.store.Get(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return model.ServiceRequest{}, ErrNotFound
	}
	return req, err
}

func (l *Lifecycle) commit(ctx context.Context, requestID string, from, to model.Status, at time.Time) (model.ServiceRequest, error) {
	req, err := l.store.Transition(ctx, requestID, from, to, "", at)
	if err == nil {
		return req, nil
	}
	if ce, ok := store.AsConflict(err); ok {
		// The state moved between our read and the commit; whoever committed
		// first won. Surface the observed state so the caller can re-poll.
		l.log.Warnf("transition %s -> %s on %s lost to concurrent commit, now %s", from, to, requestID, ce.Current)
		return model.ServiceRequest{}, &StaleStateError{RequestID: requestID, Observed: ce.Current}
	}
	return model.ServiceRequest{}, err
}

func (l *Lifecycle) reject(requestID string, from, to model.Status) error {
	err := &InvalidTransitionError{RequestID: requestID, From: from, To: to}
	l.log.Warnf("%v", err)
	return err
}
