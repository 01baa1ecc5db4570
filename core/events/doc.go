// Package events defines the dispatch related events emitted on the event bus.
//
// Available event types:
//   - RequestCreatedEvent: new pending request
//   - RequestAcceptedEvent: a provider won the accept race
//   - AcceptRejectedEvent: an accept attempt lost
//   - RequestClosedEvent: completion, cancellation or expiry
//   - ProviderMovedEvent: provider relocation or activation change
package events
