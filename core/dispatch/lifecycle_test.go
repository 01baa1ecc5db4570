package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/core/store"
	"github.com/tyreaid/roadaid/infra/logger"
)

func TestCanTransitionTable(t *testing.T) {
	all := []model.Status{model.StatusPending, model.StatusAccepted, model.StatusCompleted, model.StatusCancelled}
	allowed := map[[2]model.Status]bool{
		{model.StatusPending, model.StatusAccepted}:   true,
		{model.StatusPending, model.StatusCancelled}:  true,
		{model.StatusAccepted, model.StatusCompleted}: true,
		{model.StatusAccepted, model.StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]model.Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("%s -> %s: got %v want %v", from, to, got, want)
			}
		}
	}
}

func newLifecycle(t *testing.T) (*Lifecycle, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewLifecycle(st, logger.NopLogger{}), st
}

func acceptedRequest(t *testing.T, st *store.MemoryStore, id, claimant string) model.ServiceRequest {
	t.Helper()
	ctx := context.Background()
	if err := st.Create(ctx, pendingRequest(id, time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	req, err := st.Transition(ctx, id, model.StatusPending, model.StatusAccepted, claimant, time.Now())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return req
}

func TestLifecycleComplete(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()
	acceptedRequest(t, st, "r1", "p1")

	req, err := lc.Complete(ctx, "r1", "p1", time.Now())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if req.Status != model.StatusCompleted || req.ClaimantID != "p1" {
		t.Fatalf("unexpected record %+v", req)
	}

	// Completing again is an invalid transition out of a terminal state.
	var invalid *InvalidTransitionError
	if _, err := lc.Complete(ctx, "r1", "p1", time.Now()); !errors.As(err, &invalid) {
		t.Fatalf("second complete: got %v", err)
	}
}

func TestLifecycleCompleteAuthorization(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()
	acceptedRequest(t, st, "r1", "p1")

	if _, err := lc.Complete(ctx, "r1", "p2", time.Now()); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("non-claimant complete: got %v", err)
	}
}

func TestLifecycleCompletePendingRejected(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()
	if err := st.Create(ctx, pendingRequest("r1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	// COMPLETED is unreachable without passing through ACCEPTED.
	var invalid *InvalidTransitionError
	if _, err := lc.Complete(ctx, "r1", "p1", time.Now()); !errors.As(err, &invalid) {
		t.Fatalf("complete on pending: got %v", err)
	}
}

func TestLifecycleCancel(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()

	// Requester withdraws a pending request.
	if err := st.Create(ctx, pendingRequest("r1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	req, err := lc.Cancel(ctx, "r1", "u1", time.Now())
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if req.Status != model.StatusCancelled {
		t.Fatalf("unexpected status %s", req.Status)
	}

	// Claimant backs out of an accepted request; claimant id is retained.
	acceptedRequest(t, st, "r2", "p1")
	req, err = lc.Cancel(ctx, "r2", "p1", time.Now())
	if err != nil {
		t.Fatalf("cancel accepted: %v", err)
	}
	if req.ClaimantID != "p1" {
		t.Fatal("claimant dropped on cancellation")
	}

	// Requester cancels an accepted request.
	acceptedRequest(t, st, "r3", "p1")
	if _, err := lc.Cancel(ctx, "r3", "u1", time.Now()); err != nil {
		t.Fatalf("requester cancel of accepted: %v", err)
	}

	// A stranger may not cancel.
	if err := st.Create(ctx, pendingRequest("r4", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lc.Cancel(ctx, "r4", "someone-else", time.Now()); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger cancel: got %v", err)
	}

	// An empty actor id must not match the empty claimant of a pending
	// request.
	if _, err := lc.Cancel(ctx, "r4", "", time.Now()); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("anonymous cancel: got %v", err)
	}
}

// No sequence of calls can leave a terminal state.
func TestLifecycleTerminalClosure(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()

	acceptedRequest(t, st, "done", "p1")
	if _, err := lc.Complete(ctx, "done", "p1", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := st.Create(ctx, pendingRequest("gone", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lc.Cancel(ctx, "gone", "u1", time.Now()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, id := range []string{"done", "gone"} {
		var invalid *InvalidTransitionError
		if _, err := lc.Cancel(ctx, id, "u1", time.Now()); !errors.As(err, &invalid) {
			t.Errorf("cancel on terminal %s: got %v", id, err)
		}
		if _, err := lc.Complete(ctx, id, "p1", time.Now()); err == nil {
			t.Errorf("complete on terminal %s succeeded", id)
		}
	}
}

func TestLifecycleCancelLosesRaceToAccept(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()
	if err := st.Create(ctx, pendingRequest("r1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	// An accept commits first; the cancel attempt conditioned on PENDING
	// must observe the winner's state, not half of either write.
	if _, err := st.Transition(ctx, "r1", model.StatusPending, model.StatusAccepted, "p1", time.Now()); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := st.Transition(ctx, "r1", model.StatusPending, model.StatusCancelled, "", time.Now())
	ce, ok := store.AsConflict(err)
	if !ok {
		t.Fatalf("expected conflict, got %v", err)
	}
	if ce.Current != model.StatusAccepted {
		t.Fatalf("conflict observed %s", ce.Current)
	}

	// Through the lifecycle the requester still cancels explicitly, now from
	// ACCEPTED, as the product flow prescribes.
	if _, err := lc.Cancel(ctx, "r1", "u1", time.Now()); err != nil {
		t.Fatalf("explicit cancel after lost race: %v", err)
	}
}

func TestLifecycleExpirePending(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()
	now := time.Now()

	stale := pendingRequest("stale", now.Add(-5*time.Hour))
	fresh := pendingRequest("fresh", now.Add(-time.Minute))
	claimedOld := pendingRequest("claimed", now.Add(-6*time.Hour))
	for _, r := range []model.ServiceRequest{stale, fresh, claimedOld} {
		if err := st.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}
	if _, err := st.Transition(ctx, "claimed", model.StatusPending, model.StatusAccepted, "p1", now); err != nil {
		t.Fatalf("accept: %v", err)
	}

	expired, err := lc.ExpirePending(ctx, 4*time.Hour, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Fatalf("expected stale expired, got %+v", expired)
	}
	if expired[0].Status != model.StatusCancelled || expired[0].ClosedAt.IsZero() {
		t.Fatalf("expired record not closed: %+v", expired[0])
	}
	got, err := st.Get(ctx, "stale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Fatalf("stale request is %s", got.Status)
	}
	for _, id := range []string{"fresh"} {
		got, _ := st.Get(ctx, id)
		if got.Status != model.StatusPending {
			t.Errorf("%s unexpectedly %s", id, got.Status)
		}
	}
	accepted, _ := st.Get(ctx, "claimed")
	if accepted.Status != model.StatusAccepted {
		t.Errorf("accepted request touched by expiry: %s", accepted.Status)
	}
}

func TestLifecycleNotFound(t *testing.T) {
	lc, _ := newLifecycle(t)
	ctx := context.Background()
	for name, call := range map[string]func() error{
		"complete": func() error { _, err := lc.Complete(ctx, "nope", "p1", time.Now()); return err },
		"cancel":   func() error { _, err := lc.Cancel(ctx, "nope", "u1", time.Now()); return err },
	} {
		if err := call(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestLifecycleExpiryLeavesClaimedWorkAlone(t *testing.T) {
	lc, st := newLifecycle(t)
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 20; i++ {
		if err := st.Create(ctx, pendingRequest(fmt.Sprintf("r%02d", i), now.Add(-5*time.Hour))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	// Half get claimed before the sweep runs.
	for i := 0; i < 20; i += 2 {
		if _, err := st.Transition(ctx, fmt.Sprintf("r%02d", i), model.StatusPending, model.StatusAccepted, "p1", now); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	expired, err := lc.ExpirePending(ctx, time.Hour, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 10 {
		t.Fatalf("expected 10 expiries, got %d", len(expired))
	}
}
