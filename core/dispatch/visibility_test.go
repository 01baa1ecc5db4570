package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tyreaid/roadaid/core/geo"
	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/core/store"
)

func requestAt(id string, loc model.Location, prio model.Priority, created time.Time) model.ServiceRequest {
	return model.ServiceRequest{
		ID:          id,
		RequesterID: "u1",
		Location:    loc,
		Priority:    prio,
		Status:      model.StatusPending,
		CreatedAt:   created,
	}
}

func TestVisibilityContainment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	point := model.Location{Lat: 41.00, Lon: 28.90}
	// A is ~3km away with a 10km radius, B ~50km away with the same radius.
	a := model.Provider{ID: "A", Location: model.Location{Lat: 41.027, Lon: 28.90}, RadiusKm: 10, Active: true}
	b := model.Provider{ID: "B", Location: model.Location{Lat: 41.45, Lon: 28.90}, RadiusKm: 10, Active: true}
	idx := testIndex(t, a, b)
	f := NewVisibilityFilter(st, idx)

	if err := st.Create(ctx, requestAt("R", point, model.PriorityHigh, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	visA, err := f.PendingFor(ctx, "A")
	if err != nil {
		t.Fatalf("pendingFor A: %v", err)
	}
	if len(visA.Pending) != 1 || visA.Pending[0].ID != "R" {
		t.Fatalf("A should see R, got %v", visA.Pending)
	}
	visB, err := f.PendingFor(ctx, "B")
	if err != nil {
		t.Fatalf("pendingFor B: %v", err)
	}
	if len(visB.Pending) != 0 {
		t.Fatalf("B should see nothing, got %v", visB.Pending)
	}
}

func TestVisibilityOrdering(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	idx := testIndex(t, activeProvider("p1"))
	f := NewVisibilityFilter(st, idx)

	loc := model.Location{Lat: 41.0, Lon: 28.99}
	t0 := time.Now()
	t1 := t0.Add(time.Minute)
	t2 := t0.Add(2 * time.Minute)
	for _, spec := range []struct {
		id      string
		prio    model.Priority
		created time.Time
	}{
		{"low@t0", model.PriorityLow, t0},
		{"high@t1", model.PriorityHigh, t1},
		{"medium@t2", model.PriorityMedium, t2},
	} {
		if err := st.Create(ctx, requestAt(spec.id, loc, spec.prio, spec.created)); err != nil {
			t.Fatalf("create %s: %v", spec.id, err)
		}
	}

	vis, err := f.PendingFor(ctx, "p1")
	if err != nil {
		t.Fatalf("pendingFor: %v", err)
	}
	want := []string{"high@t1", "medium@t2", "low@t0"}
	if len(vis.Pending) != len(want) {
		t.Fatalf("got %d pending", len(vis.Pending))
	}
	for i, id := range want {
		if vis.Pending[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, vis.Pending[i].ID, id)
		}
	}
}

func TestVisibilityTieBreakOldestFirst(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	idx := testIndex(t, activeProvider("p1"))
	f := NewVisibilityFilter(st, idx)

	loc := model.Location{Lat: 41.0, Lon: 28.99}
	base := time.Now()
	for i, id := range []string{"second", "first"} {
		created := base.Add(time.Duration(1-i) * time.Second)
		if err := st.Create(ctx, requestAt(id, loc, model.PriorityHigh, created)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	vis, err := f.PendingFor(ctx, "p1")
	if err != nil {
		t.Fatalf("pendingFor: %v", err)
	}
	if vis.Pending[0].ID != "first" || vis.Pending[1].ID != "second" {
		t.Fatalf("tie-break wrong: %s, %s", vis.Pending[0].ID, vis.Pending[1].ID)
	}
}

func TestVisibilityClaimedSurvivesRelocation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := activeProvider("p1")
	idx := testIndex(t, p)
	f := NewVisibilityFilter(st, idx)

	loc := model.Location{Lat: 41.0, Lon: 28.99}
	if err := st.Create(ctx, requestAt("r1", loc, model.PriorityHigh, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Transition(ctx, "r1", model.StatusPending, model.StatusAccepted, "p1", time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Provider relocates far out of range of its claimed request.
	p.Location = model.Location{Lat: 48.85, Lon: 2.35}
	if err := idx.Upsert(p); err != nil {
		t.Fatalf("relocate: %v", err)
	}

	vis, err := f.PendingFor(ctx, "p1")
	if err != nil {
		t.Fatalf("pendingFor: %v", err)
	}
	if len(vis.Claimed) != 1 || vis.Claimed[0].ID != "r1" {
		t.Fatalf("claimed view lost after relocation: %v", vis.Claimed)
	}
}

func TestVisibilityClaimedExcludesClosed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	idx := testIndex(t, activeProvider("p1"))
	f := NewVisibilityFilter(st, idx)

	loc := model.Location{Lat: 41.0, Lon: 28.99}
	for _, id := range []string{"open", "done"} {
		if err := st.Create(ctx, requestAt(id, loc, model.PriorityMedium, time.Now())); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := st.Transition(ctx, id, model.StatusPending, model.StatusAccepted, "p1", time.Now()); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	if _, err := st.Transition(ctx, "done", model.StatusAccepted, model.StatusCompleted, "", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	vis, err := f.PendingFor(ctx, "p1")
	if err != nil {
		t.Fatalf("pendingFor: %v", err)
	}
	if len(vis.Claimed) != 1 || vis.Claimed[0].ID != "open" {
		t.Fatalf("closed request leaked into active view: %v", vis.Claimed)
	}
}

func TestVisibilityInactiveProvider(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := activeProvider("p1")
	p.Active = false
	idx := testIndex(t, p)
	f := NewVisibilityFilter(st, idx)

	loc := model.Location{Lat: 41.0, Lon: 28.99}
	if err := st.Create(ctx, requestAt("r1", loc, model.PriorityHigh, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	vis, err := f.PendingFor(ctx, "p1")
	if err != nil {
		t.Fatalf("pendingFor: %v", err)
	}
	if len(vis.Pending) != 0 {
		t.Fatal("inactive provider offered pending work")
	}
}

func TestVisibilityUnknownProvider(t *testing.T) {
	st := store.NewMemoryStore()
	idx := geo.NewIndex(0.5)
	f := NewVisibilityFilter(st, idx)
	if _, err := f.PendingFor(context.Background(), "ghost"); !errors.Is(err, ErrInvalidProvider) {
		t.Fatalf("got %v", err)
	}
}
