// Package dispatch implements the core logic of the roadside-assistance
// dispatch engine: who sees a request, who wins it, and how it ends.
//
// Key components:
//   - Manager: single entry point; wires store, geo index, events and metrics.
//   - Arbiter: resolves concurrent accept attempts to exactly one winner by
//     delegating the decision to the store's atomic transition.
//   - Lifecycle: enforces the request state machine (completion,
//     cancellation, TTL expiry of stale PENDING requests).
//   - VisibilityFilter: computes the per-provider view, priority first,
//     oldest first, plus claimed requests regardless of distance.
//
// Conflicts (AlreadyClaimedError, TerminalStateError,
// InvalidTransitionError, StaleStateError) are routine outcomes of legitimate
// racing and are surfaced as typed errors with stable reason codes, never
// swallowed. No cross-request lock is ever held: the request record is the
// unit of atomicity, so unrelated requests never contend.
package dispatch
