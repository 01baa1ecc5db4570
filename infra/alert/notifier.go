package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tyreaid/roadaid/core/events"
	"github.com/tyreaid/roadaid/core/geo"
	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/infra/logger"
	"github.com/tyreaid/roadaid/internal/eventbus"
)

// Directory resolves which providers cover a location. The dispatch manager
// satisfies it.
type Directory interface {
	ProvidersCovering(point model.Location) []model.Provider
}

// Message is the alert payload pushed to a provider when a new request lands
// inside its service circle.
type Message struct {
	RequestID  string         `json:"request_id"`
	Priority   model.Priority `json:"priority"`
	Title      string         `json:"title"`
	Location   model.Location `json:"location"`
	DistanceKm float64        `json:"distance_km"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Notifier listens for new requests on the event bus and pushes an alert to
// every active provider whose radius covers the request. Delivery is best
// effort; a failed publish is logged, never retried past the client's own
// retry policy, and never blocks dispatch.
type Notifier struct {
	bus       eventbus.EventBus
	dir       Directory
	pub       Publisher
	topicRoot string
	log       logger.Logger
}

// NewNotifier creates a Notifier. The topic root defaults to "roadaid".
func NewNotifier(bus eventbus.EventBus, dir Directory, pub Publisher, topicRoot string) (*Notifier, error) {
	if bus == nil || dir == nil || pub == nil {
		return nil, fmt.Errorf("alert: nil parameter provided to NewNotifier")
	}
	if topicRoot == "" {
		topicRoot = "roadaid"
	}
	return &Notifier{
		bus:       bus,
		dir:       dir,
		pub:       pub,
		topicRoot: topicRoot,
		log:       logger.New("alert-notifier"),
	}, nil
}

// Start consumes the bus until the context is canceled.
func (n *Notifier) Start(ctx context.Context) {
	sub := n.bus.Subscribe()
	go func() {
		defer n.bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if created, ok := ev.(events.RequestCreatedEvent); ok {
					n.notify(created.Request)
				}
			}
		}
	}()
}

// Topic returns the alert topic for a provider.
func (n *Notifier) Topic(providerID string) string {
	return fmt.Sprintf("%s/providers/%s/alerts", n.topicRoot, providerID)
}

func (n *Notifier) notify(req model.ServiceRequest) {
	providers := n.dir.ProvidersCovering(req.Location)
	if len(providers) == 0 {
		n.log.Debugf("no providers cover request %s", req.ID)
		return
	}
	for _, p := range providers {
		msg := Message{
			RequestID:  req.ID,
			Priority:   req.Priority,
			Title:      req.Title,
			Location:   req.Location,
			DistanceKm: geo.DistanceKm(p.Location, req.Location),
			CreatedAt:  req.CreatedAt,
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			n.log.Errorf("encode alert for %s: %v", p.ID, err)
			continue
		}
		if err := n.pub.Publish(n.Topic(p.ID), payload); err != nil {
			n.log.Errorf("alert to %s for request %s: %v", p.ID, req.ID, err)
			continue
		}
		n.log.Debugw("alert published", map[string]any{
			"request_id":  req.ID,
			"provider_id": p.ID,
		})
	}
}
