package metrics

import (
	"context"

	"github.com/tyreaid/roadaid/core/events"
	coremetrics "github.com/tyreaid/roadaid/core/metrics"
	"github.com/tyreaid/roadaid/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// dispatch events. It serves sinks that are fed from the bus instead of
// inline by the manager, so the same sink must not be wired both ways.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	switch e := ev.(type) {
	case events.RequestCreatedEvent:
		if r, ok := sink.(coremetrics.RequestCreatedRecorder); ok {
			_ = r.RecordRequestCreated(coremetrics.RequestCreatedEvent{
				RequestID: e.Request.ID,
				Priority:  e.Request.Priority,
				Time:      e.Request.CreatedAt,
			})
		}
	case events.RequestAcceptedEvent:
		outcome := "accepted"
		if e.Idempotent {
			outcome = "idempotent"
		}
		_ = sink.RecordAcceptOutcome([]coremetrics.AcceptOutcome{{
			RequestID:  e.Request.ID,
			ProviderID: e.ProviderID,
			Priority:   e.Request.Priority,
			Outcome:    outcome,
			Latency:    e.Latency,
			Time:       e.Request.AcceptedAt,
		}})
	case events.AcceptRejectedEvent:
		_ = sink.RecordAcceptOutcome([]coremetrics.AcceptOutcome{{
			RequestID:  e.RequestID,
			ProviderID: e.ProviderID,
			Outcome:    e.Reason,
			Latency:    e.Latency,
		}})
	case events.RequestClosedEvent:
		if r, ok := sink.(coremetrics.RequestClosedRecorder); ok {
			_ = r.RecordRequestClosed(coremetrics.RequestClosedEvent{
				RequestID: e.Request.ID,
				Status:    e.Request.Status,
				Expired:   e.Expired,
				Open:      e.Request.ClosedAt.Sub(e.Request.CreatedAt),
				Time:      e.Request.ClosedAt,
			})
		}
	}
}
