package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tyreaid/roadaid/core/events"
	"github.com/tyreaid/roadaid/core/geo"
	"github.com/tyreaid/roadaid/core/logger"
	"github.com/tyreaid/roadaid/core/metrics"
	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/core/store"
	"github.com/tyreaid/roadaid/internal/eventbus"
)

// Manager is the single entry point of the dispatch engine. It composes the
// store, the geo index, the arbiter, the lifecycle controller and the
// visibility filter, and adds the cross-cutting concerns: events on the bus,
// metrics, logging and per-operation timeouts.
type Manager struct {
	store     store.RequestStore
	geo       *geo.Index
	arbiter   *Arbiter
	lifecycle *Lifecycle
	filter    *VisibilityFilter
	bus       eventbus.EventBus
	metrics   metrics.MetricsSink
	logger    logger.Logger
	opTimeout time.Duration
	now       func() time.Time
}

// NewRequest carries the caller-supplied fields of a request submission.
type NewRequest struct {
	RequesterID string
	Location    model.Location
	Priority    model.Priority
	Title       string
	Description string
}

// NewManager creates a Manager. The bus and sink may be nil; logging is
// required.
func NewManager(st store.RequestStore, idx *geo.Index, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger, cfg Config) (*Manager, error) {
	if st == nil || idx == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		store:     st,
		geo:       idx,
		arbiter:   NewArbiter(st, idx),
		lifecycle: NewLifecycle(st, log),
		filter:    NewVisibilityFilter(st, idx),
		bus:       bus,
		metrics:   sink,
		logger:    log,
		opTimeout: time.Duration(cfg.OpTimeoutSeconds) * time.Second,
		now:       time.Now,
	}, nil
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opTimeout)
}

// CreateRequest persists a new PENDING request and announces it on the bus.
func (m *Manager) CreateRequest(ctx context.Context, in NewRequest) (model.ServiceRequest, error) {
	if in.RequesterID == "" {
		return model.ServiceRequest{}, &ValidationError{Field: "requester_id", Detail: "required"}
	}
	if err := in.Location.Validate(); err != nil {
		return model.ServiceRequest{}, &ValidationError{Field: "location", Detail: err.Error()}
	}
	req := model.ServiceRequest{
		ID:          uuid.NewString(),
		RequesterID: in.RequesterID,
		Location:    in.Location,
		Priority:    in.Priority,
		Title:       in.Title,
		Description: in.Description,
		Status:      model.StatusPending,
		CreatedAt:   m.now().UTC(),
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	if err := m.store.Create(opCtx, req); err != nil {
		return model.ServiceRequest{}, err
	}
	m.logger.Infof("request %s created by %s priority=%s", req.ID, req.RequesterID, req.Priority)
	m.publish(events.RequestCreatedEvent{Request: req})
	if rec, ok := m.metrics.(metrics.RequestCreatedRecorder); ok {
		if err := rec.RecordRequestCreated(metrics.RequestCreatedEvent{RequestID: req.ID, Priority: req.Priority, Time: req.CreatedAt}); err != nil {
			m.logger.Errorf("created metrics error: %v", err)
		}
	}
	m.recordPendingSize(ctx)
	return req, nil
}

// VisibilityFor returns the provider's current visible set.
func (m *Manager) VisibilityFor(ctx context.Context, providerID string) (Visibility, error) {
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.filter.PendingFor(opCtx, providerID)
}

// PendingRequests returns every open request, oldest first.
func (m *Manager) PendingRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	return m.store.ListByStatus(opCtx, model.StatusPending)
}

// GetRequest returns one request by id.
func (m *Manager) GetRequest(ctx context.Context, id string) (model.ServiceRequest, error) {
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	req, err := m.store.Get(opCtx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.ServiceRequest{}, ErrNotFound
	}
	return req, err
}

// Accept arbitrates an accept attempt and records its outcome.
func (m *Manager) Accept(ctx context.Context, requestID, providerID string) (model.ServiceRequest, error) {
	start := m.now()
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()

	req, idem, err := m.arbiter.Accept(opCtx, requestID, providerID, start.UTC())
	latency := m.now().Sub(start)

	outcome := Reason(err)
	if err == nil {
		// Keep the success label identical across the inline and bus-fed
		// sinks.
		outcome = "accepted"
		if idem {
			outcome = "idempotent"
		}
	}
	if rerr := m.metrics.RecordAcceptOutcome([]metrics.AcceptOutcome{{
		RequestID:  requestID,
		ProviderID: providerID,
		Priority:   req.Priority,
		Outcome:    outcome,
		Latency:    latency,
		Time:       start.UTC(),
	}}); rerr != nil {
		m.logger.Errorf("accept metrics error: %v", rerr)
	}

	if err != nil {
		m.logger.Debugw("accept rejected", map[string]any{
			"request_id":  requestID,
			"provider_id": providerID,
			"reason":      outcome,
		})
		m.publish(events.AcceptRejectedEvent{RequestID: requestID, ProviderID: providerID, Reason: outcome, Latency: latency})
		return model.ServiceRequest{}, err
	}

	m.logger.Infof("request %s accepted by %s (idempotent=%v)", requestID, providerID, idem)
	m.publish(events.RequestAcceptedEvent{Request: req, ProviderID: providerID, Latency: latency, Idempotent: idem})
	if !idem {
		m.recordPendingSize(ctx)
	}
	return req, nil
}

// Complete marks the request done on behalf of its claimant.
func (m *Manager) Complete(ctx context.Context, requestID, providerID string) (model.ServiceRequest, error) {
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	req, err := m.lifecycle.Complete(opCtx, requestID, providerID, m.now().UTC())
	if err != nil {
		return model.ServiceRequest{}, err
	}
	m.closed(ctx, req, providerID, false)
	return req, nil
}

// Cancel withdraws the request on behalf of the requester or the claimant.
func (m *Manager) Cancel(ctx context.Context, requestID, actorID string) (model.ServiceRequest, error) {
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	req, err := m.lifecycle.Cancel(opCtx, requestID, actorID, m.now().UTC())
	if err != nil {
		return model.ServiceRequest{}, err
	}
	m.closed(ctx, req, actorID, false)
	return req, nil
}

// ExpirePending auto-cancels PENDING requests older than ttl.
func (m *Manager) ExpirePending(ctx context.Context, ttl time.Duration) (int, error) {
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	expired, err := m.lifecycle.ExpirePending(opCtx, ttl, m.now().UTC())
	for _, req := range expired {
		m.publish(events.RequestClosedEvent{Request: req, ActorID: "system", Expired: true})
		if rec, ok := m.metrics.(metrics.RequestClosedRecorder); ok {
			ev := metrics.RequestClosedEvent{
				RequestID: req.ID,
				Status:    req.Status,
				Expired:   true,
				Open:      req.ClosedAt.Sub(req.CreatedAt),
				Time:      req.ClosedAt,
			}
			if rerr := rec.RecordRequestClosed(ev); rerr != nil {
				m.logger.Errorf("closed metrics error: %v", rerr)
			}
		}
	}
	if len(expired) > 0 {
		m.logger.Infof("expired %d pending requests", len(expired))
		if rec, ok := m.metrics.(metrics.ExpiryRecorder); ok {
			if rerr := rec.RecordExpired(len(expired)); rerr != nil {
				m.logger.Errorf("expiry metrics error: %v", rerr)
			}
		}
		m.recordPendingSize(ctx)
	}
	return len(expired), err
}

// UpsertProvider registers or relocates a provider in the geo index.
func (m *Manager) UpsertProvider(p model.Provider) error {
	if err := m.geo.Upsert(p); err != nil {
		return err
	}
	m.publish(events.ProviderMovedEvent{Provider: p})
	return nil
}

// SetProviderActive flips the provider's availability.
func (m *Manager) SetProviderActive(id string, active bool) error {
	p, ok := m.geo.Get(id)
	if !ok {
		return ErrInvalidProvider
	}
	p.Active = active
	return m.UpsertProvider(p)
}

// Provider returns the provider's registration, if any.
func (m *Manager) Provider(id string) (model.Provider, bool) { return m.geo.Get(id) }

// ProvidersCovering returns the active providers whose circle contains the
// point, used to target emergency alerts.
func (m *Manager) ProvidersCovering(point model.Location) []model.Provider {
	return m.geo.Covering(point)
}

func (m *Manager) closed(ctx context.Context, req model.ServiceRequest, actorID string, expired bool) {
	m.logger.Infof("request %s closed as %s by %s", req.ID, req.Status, actorID)
	m.publish(events.RequestClosedEvent{Request: req, ActorID: actorID, Expired: expired})
	if rec, ok := m.metrics.(metrics.RequestClosedRecorder); ok {
		ev := metrics.RequestClosedEvent{
			RequestID: req.ID,
			Status:    req.Status,
			Expired:   expired,
			Open:      req.ClosedAt.Sub(req.CreatedAt),
			Time:      req.ClosedAt,
		}
		if err := rec.RecordRequestClosed(ev); err != nil {
			m.logger.Errorf("closed metrics error: %v", err)
		}
	}
	m.recordPendingSize(ctx)
}

func (m *Manager) recordPendingSize(ctx context.Context) {
	rec, ok := m.metrics.(metrics.PendingSizeRecorder)
	if !ok {
		return
	}
	opCtx, cancel := m.opCtx(ctx)
	defer cancel()
	pending, err := m.store.ListByStatus(opCtx, model.StatusPending)
	if err != nil {
		return
	}
	if err := rec.RecordPendingSize(len(pending)); err != nil {
		m.logger.Errorf("pending size metrics error: %v", err)
	}
}

func (m *Manager) publish(ev eventbus.Event) {
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}
