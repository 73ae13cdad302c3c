package catalog

import (
	"context"
	"errors"

	"quizrally/internal/model"
)

// ErrNotFound is returned when a deck id does not exist in the catalog.
var ErrNotFound = errors.New("deck not found")

// Catalog is the read side of deck storage. Rooms copy the deck at creation
// time, so catalog contents can change without affecting games in flight.
type Catalog interface {
	Lookup(ctx context.Context, id string) (*model.Deck, error)
	List(ctx context.Context) ([]model.DeckSummary, error)
}
