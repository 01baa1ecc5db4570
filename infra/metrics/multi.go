package metrics

import coremetrics "github.com/tyreaid/roadaid/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAcceptOutcome forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAcceptOutcome(outcomes []coremetrics.AcceptOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordAcceptOutcome(outcomes); err != nil {
			return err
		}
	}
	return nil
}

// RecordRequestCreated forwards creation events to supporting sinks.
func (m *MultiSink) RecordRequestCreated(ev coremetrics.RequestCreatedEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RequestCreatedRecorder); ok {
			if err := rec.RecordRequestCreated(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRequestClosed forwards closure events to supporting sinks.
func (m *MultiSink) RecordRequestClosed(ev coremetrics.RequestClosedEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RequestClosedRecorder); ok {
			if err := rec.RecordRequestClosed(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordExpired forwards sweep counts to supporting sinks.
func (m *MultiSink) RecordExpired(count int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ExpiryRecorder); ok {
			if err := rec.RecordExpired(count); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPendingSize forwards the pending set size to supporting sinks.
func (m *MultiSink) RecordPendingSize(size int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PendingSizeRecorder); ok {
			if err := rec.RecordPendingSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}
