package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPriorityRoundTrip(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		got, ok := PriorityFromString(p.String())
		if !ok || got != p {
			t.Fatalf("round trip failed for %s", p)
		}
	}
	if _, ok := PriorityFromString("URGENT"); ok {
		t.Fatal("expected unknown priority to be rejected")
	}
	// Empty priority defaults to MEDIUM.
	p, ok := PriorityFromString("")
	if !ok || p != PriorityMedium {
		t.Fatalf("expected empty priority to default to MEDIUM, got %s", p)
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:   false,
		StatusAccepted:  false,
		StatusCompleted: true,
		StatusCancelled: true,
	}
	for st, want := range cases {
		if st.Terminal() != want {
			t.Errorf("%s: terminal = %v, want %v", st, st.Terminal(), want)
		}
	}
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(StatusAccepted)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"ACCEPTED"` {
		t.Fatalf("unexpected encoding %s", b)
	}
	var st Status
	if err := json.Unmarshal([]byte(`"CANCELLED"`), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st != StatusCancelled {
		t.Fatalf("got %s", st)
	}
	if err := json.Unmarshal([]byte(`"BOGUS"`), &st); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestLocationValidate(t *testing.T) {
	if err := (Location{Lat: 41.0, Lon: 28.9}).Validate(); err != nil {
		t.Fatalf("valid location rejected: %v", err)
	}
	bad := []Location{
		{Lat: 91},
		{Lat: -90.5},
		{Lon: 180.1},
		{Lon: -181},
	}
	for _, l := range bad {
		if err := l.Validate(); err == nil {
			t.Errorf("expected rejection for %+v", l)
		}
	}
}

func TestServiceRequestValidate(t *testing.T) {
	now := time.Now()
	req := ServiceRequest{
		ID:          "r1",
		RequesterID: "u1",
		Location:    Location{Lat: 41, Lon: 28.9},
		Priority:    PriorityHigh,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	accepted := req
	accepted.Status = StatusAccepted
	if err := accepted.Validate(); err == nil {
		t.Fatal("accepted request without claimant must be invalid")
	}
	accepted.ClaimantID = "p1"
	accepted.AcceptedAt = now.Add(time.Second)
	if err := accepted.Validate(); err != nil {
		t.Fatalf("accepted request rejected: %v", err)
	}

	backwards := accepted
	backwards.AcceptedAt = now.Add(-time.Second)
	if err := backwards.Validate(); err == nil {
		t.Fatal("accepted_at before created_at must be invalid")
	}

	claimedPending := req
	claimedPending.ClaimantID = "p1"
	if err := claimedPending.Validate(); err == nil {
		t.Fatal("pending request with claimant must be invalid")
	}
}

func TestProviderValidate(t *testing.T) {
	p := Provider{ID: "p1", Location: Location{Lat: 41, Lon: 29}, RadiusKm: 10, Active: true}
	if err := p.Validate(); err != nil {
		t.Fatalf("valid provider rejected: %v", err)
	}
	p.RadiusKm = 0
	if err := p.Validate(); err == nil {
		t.Fatal("zero radius must be invalid")
	}
}
