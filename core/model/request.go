package model

import (
	"fmt"
	"time"
)

// Priority ranks how urgently a service request needs attention.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// PriorityFromString parses the wire representation of a priority. An empty
// string defaults to MEDIUM.
func PriorityFromString(s string) (Priority, bool) {
	switch s {
	case "LOW":
		return PriorityLow, true
	case "MEDIUM", "":
		return PriorityMedium, true
	case "HIGH":
		return PriorityHigh, true
	default:
		return 0, false
	}
}

// Status is the lifecycle state of a service request.
type Status int

const (
	StatusPending Status = iota
	StatusAccepted
	StatusCompleted
	StatusCancelled
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// StatusFromString parses the wire representation of a status.
func StatusFromString(s string) (Status, bool) {
	switch s {
	case "PENDING":
		return StatusPending, true
	case "ACCEPTED":
		return StatusAccepted, true
	case "COMPLETED":
		return StatusCompleted, true
	case "CANCELLED":
		return StatusCancelled, true
	default:
		return 0, false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// MarshalText implements encoding.TextMarshaler so statuses serialize as
// their names in JSON payloads.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, ok := StatusFromString(string(b))
	if !ok {
		return fmt.Errorf("model: unknown status %q", string(b))
	}
	*s = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, ok := PriorityFromString(string(b))
	if !ok {
		return fmt.Errorf("model: unknown priority %q", string(b))
	}
	*p = v
	return nil
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects coordinates outside [-90,90] / [-180,180].
func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("model: latitude %v out of range", l.Lat)
	}
	if l.Lon < -180 || l.Lon > 180 {
		return fmt.Errorf("model: longitude %v out of range", l.Lon)
	}
	return nil
}

// ServiceRequest is an emergency roadside-assistance request. Identity,
// location, priority and the free-text fields are immutable after creation;
// only Status, ClaimantID and the corresponding timestamps change, and only
// through the store's atomic transition.
type ServiceRequest struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	Location    Location  `json:"location"`
	Priority    Priority  `json:"priority"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	ClaimantID  string    `json:"claimant_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	AcceptedAt  time.Time `json:"accepted_at,omitempty"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
}

// Validate checks the invariants a stored request must uphold: coordinates in
// range, claimant set iff accepted or completed, monotonic timestamps.
func (r ServiceRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("model: request id is required")
	}
	if r.RequesterID == "" {
		return fmt.Errorf("model: requester id is required")
	}
	if err := r.Location.Validate(); err != nil {
		return err
	}
	claimed := r.Status == StatusAccepted || r.Status == StatusCompleted
	if claimed && r.ClaimantID == "" {
		return fmt.Errorf("model: status %s requires a claimant", r.Status)
	}
	if !claimed && r.Status == StatusPending && r.ClaimantID != "" {
		return fmt.Errorf("model: pending request must not carry a claimant")
	}
	if !r.AcceptedAt.IsZero() && r.AcceptedAt.Before(r.CreatedAt) {
		return fmt.Errorf("model: accepted_at precedes created_at")
	}
	if !r.ClosedAt.IsZero() && !r.AcceptedAt.IsZero() && r.ClosedAt.Before(r.AcceptedAt) {
		return fmt.Errorf("model: closed_at precedes accepted_at")
	}
	return nil
}
