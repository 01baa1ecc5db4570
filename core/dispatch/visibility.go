package dispatch

import (
	"context"
	"sort"

	"github.com/tyreaid/roadaid/core/geo"
	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/core/store"
)

// Visibility is the set of requests a provider may currently see and act on.
type Visibility struct {
	// Pending holds open requests inside the provider's service radius,
	// highest priority first, oldest first within a priority.
	Pending []model.ServiceRequest `json:"pending"`
	// Claimed holds the provider's ACCEPTED requests regardless of distance:
	// relocating out of range never hides work already taken.
	Claimed []model.ServiceRequest `json:"claimed"`
}

// VisibilityFilter computes per-provider views over the request store.
type VisibilityFilter struct {
	store     store.RequestStore
	providers ProviderDirectory
}

// NewVisibilityFilter creates a VisibilityFilter.
func NewVisibilityFilter(st store.RequestStore, providers ProviderDirectory) *VisibilityFilter {
	return &VisibilityFilter{store: st, providers: providers}
}

// PendingFor returns the provider's current visible set. An inactive provider
// keeps its claimed view but is shown no pending work. An empty result is
// valid.
func (f *VisibilityFilter) PendingFor(ctx context.Context, providerID string) (Visibility, error) {
	p, ok := f.providers.Get(providerID)
	if !ok {
		return Visibility{}, ErrInvalidProvider
	}

	var vis Visibility
	if p.Active {
		pending, err := f.store.ListByStatus(ctx, model.StatusPending)
		if err != nil {
			return Visibility{}, err
		}
		for _, req := range pending {
			if geo.Within(p.Location, p.RadiusKm, req.Location) {
				vis.Pending = append(vis.Pending, req)
			}
		}
		orderPending(vis.Pending)
	}

	claimed, err := f.store.ListByClaimant(ctx, providerID)
	if err != nil {
		return Visibility{}, err
	}
	for _, req := range claimed {
		if req.Status == model.StatusAccepted {
			vis.Claimed = append(vis.Claimed, req)
		}
	}
	return vis, nil
}

// orderPending sorts by priority descending, then creation time ascending, so
// urgent long-waiting requests surface first.
func orderPending(reqs []model.ServiceRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].Priority != reqs[j].Priority {
			return reqs[i].Priority > reqs[j].Priority
		}
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
