package dispatch

import (
	"errors"
	"fmt"

	"github.com/tyreaid/roadaid/core/model"
)

var (
	// ErrNotFound reports an unknown request id.
	ErrNotFound = errors.New("dispatch: request not found")
	// ErrInvalidProvider reports an unknown or inactive provider.
	ErrInvalidProvider = errors.New("dispatch: provider unknown or inactive")
	// ErrNotAuthorized reports an actor that is neither the requester nor the
	// claimant of the request it tries to act on.
	ErrNotAuthorized = errors.New("dispatch: actor not authorized for request")
)

// ValidationError reports caller-supplied input rejected before any state is
// touched, e.g. a missing requester id or out-of-range coordinates.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dispatch: invalid %s: %s", e.Field, e.Detail)
}

// AlreadyClaimedError is returned to the losers of an accept race. It is a
// routine outcome, not a failure: the caller should re-poll and move on.
type AlreadyClaimedError struct {
	RequestID  string
	ClaimantID string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("dispatch: request %s already claimed", e.RequestID)
}

// TerminalStateError reports an accept attempt against a completed or
// cancelled request.
type TerminalStateError struct {
	RequestID string
	Status    model.Status
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("dispatch: request %s is %s", e.RequestID, e.Status)
}

// InvalidTransitionError reports a lifecycle call that does not match the
// request's current state, including any attempt to leave a terminal state.
type InvalidTransitionError struct {
	RequestID string
	From      model.Status
	To        model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("dispatch: invalid transition %s -> %s on request %s", e.From, e.To, e.RequestID)
}

// StaleStateError reports that the request changed state between the caller's
// read and its commit, e.g. a requester cancelling a PENDING request that a
// provider accepted first. The atomic commit that landed first wins; the
// caller sees the observed state and decides its next action.
type StaleStateError struct {
	RequestID string
	Observed  model.Status
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("dispatch: request %s changed state, now %s", e.RequestID, e.Observed)
}

// Reason maps an arbitration or lifecycle error to a stable machine-readable
// code used in API bodies and metrics labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidProvider):
		return "invalid_provider"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	}
	var (
		validation *ValidationError
		claimed    *AlreadyClaimedError
		terminal   *TerminalStateError
		invalid    *InvalidTransitionError
		stale      *StaleStateError
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &claimed):
		return "already_claimed"
	case errors.As(err, &terminal):
		return "terminal_state"
	case errors.As(err, &invalid):
		return "invalid_transition"
	case errors.As(err, &stale):
		return "state_changed"
	default:
		return "internal"
	}
}
