package catalog

import (
	"context"
	"sort"
	"sync"

	"quizrally/internal/model"
)

// Memory is an in-process catalog. It backs the server when no database is
// configured and is what the tests use.
type Memory struct {
	mu    sync.RWMutex
	decks map[string]*model.Deck
}

func NewMemory(decks ...*model.Deck) *Memory {
	m := &Memory{decks: make(map[string]*model.Deck, len(decks))}
	for _, d := range decks {
		m.decks[d.ID] = d
	}
	return m
}

func (m *Memory) Lookup(ctx context.Context, id string) (*model.Deck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	deck, ok := m.decks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deck, nil
}

func (m *Memory) List(ctx context.Context) ([]model.DeckSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.DeckSummary, 0, len(m.decks))
	for _, d := range m.decks {
		out = append(out, d.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces a deck. Used by the seeder and tests.
func (m *Memory) Put(deck *model.Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks[deck.ID] = deck
}
