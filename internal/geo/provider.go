// Package geo turns free text into ranked locations and coordinates back into
// address text, through an external geocoding provider.
package geo

import (
	"context"

	"addressbook/internal/models"
)

// Candidate is one resolved location: formatted text plus the coordinates it
// was resolved from.
type Candidate struct {
	Text        string             `json:"text"`
	Coordinates models.Coordinates `json:"coordinates"`
}

// Provider is the external geocoding service.
type Provider interface {
	// Search returns up to limit ranked candidates. No match is an empty
	// slice, not an error.
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
	// Reverse returns the address text at a point, or models.ErrUnresolvable.
	Reverse(ctx context.Context, at models.Coordinates) (string, error)
}
