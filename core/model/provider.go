package model

import "fmt"

// Provider is a roadside service provider capable of claiming requests. The
// location is mutable (providers relocate); RadiusKm bounds the area it serves.
type Provider struct {
	ID       string   `json:"id"`
	Location Location `json:"location"`
	RadiusKm float64  `json:"radius_km"`
	Active   bool     `json:"active"`
}

// Validate checks that the provider configuration is sound.
func (p Provider) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("model: provider id is required")
	}
	if err := p.Location.Validate(); err != nil {
		return err
	}
	if p.RadiusKm <= 0 {
		return fmt.Errorf("model: service radius must be positive")
	}
	return nil
}
