package model

import (
	"strings"

	"github.com/google/uuid"
)

// Choices holds the four options of a single-choice question.
type Choices struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Get returns the option text for a choice letter, or "" for anything else.
func (c Choices) Get(letter string) string {
	switch letter {
	case "A":
		return c.A
	case "B":
		return c.B
	case "C":
		return c.C
	case "D":
		return c.D
	}
	return ""
}

func (c Choices) complete() bool {
	return c.A != "" && c.B != "" && c.C != "" && c.D != ""
}

// ValidChoice reports whether s is one of the four choice letters.
func ValidChoice(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

// DeckItem is one playable question.
type DeckItem struct {
	ID           string  `json:"id" bson:"id"`
	Question     string  `json:"question" bson:"question"`
	Choices      Choices `json:"choices" bson:"choices"`
	Correct      string  `json:"correct" bson:"correct"`
	Explanation  string  `json:"explanation,omitempty" bson:"explanation,omitempty"`
	TimeLimitSec int     `json:"timeLimitSec" bson:"timeLimitSec"`
}

// Deck is an ordered set of questions a room plays through.
type Deck struct {
	ID    string     `json:"id" bson:"_id"`
	Title string     `json:"title" bson:"title"`
	Items []DeckItem `json:"items" bson:"items"`
}

// DeckSummary is the roster-safe view of a deck.
type DeckSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

// Summary returns the broadcastable summary of the deck.
func (d *Deck) Summary() DeckSummary {
	return DeckSummary{ID: d.ID, Title: d.Title, Count: len(d.Items)}
}

// ImportedDeck is a client-submitted deck payload. It is untrusted and must
// pass NormalizeImported before it becomes playable.
type ImportedDeck struct {
	ID    string         `json:"id,omitempty"`
	Title string         `json:"title,omitempty"`
	Type  string         `json:"type"`
	Items []ImportedItem `json:"items"`
}

// ImportedItem is one untrusted question within an imported deck.
type ImportedItem struct {
	ID           string  `json:"id,omitempty"`
	Question     string  `json:"question"`
	Choices      Choices `json:"choices"`
	Correct      string  `json:"correct"`
	Explanation  string  `json:"explanation,omitempty"`
	TimeLimitSec int     `json:"timeLimitSec,omitempty"`
}

const defaultItemTimeLimitSec = 20

// NormalizeImported structurally validates a client-submitted deck. Items with
// an empty prompt, missing choices, or a correct letter outside A-D are
// dropped; a deck that ends up empty (or is not single-choice) is rejected.
func NormalizeImported(in *ImportedDeck) (*Deck, bool) {
	if in == nil || in.Type != "mcq" || len(in.Items) == 0 {
		return nil, false
	}

	items := make([]DeckItem, 0, len(in.Items))
	for _, raw := range in.Items {
		question := strings.TrimSpace(raw.Question)
		correct := strings.ToUpper(strings.TrimSpace(raw.Correct))
		if question == "" || !raw.Choices.complete() || !ValidChoice(correct) {
			continue
		}
		id := raw.ID
		if id == "" {
			id = "q_" + uuid.NewString()
		}
		limit := raw.TimeLimitSec
		if limit <= 0 {
			limit = defaultItemTimeLimitSec
		}
		items = append(items, DeckItem{
			ID:           id,
			Question:     question,
			Choices:      raw.Choices,
			Correct:      correct,
			Explanation:  raw.Explanation,
			TimeLimitSec: limit,
		})
	}
	if len(items) == 0 {
		return nil, false
	}

	id := in.ID
	if id == "" {
		id = "deck_" + uuid.NewString()
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled deck"
	}
	return &Deck{ID: id, Title: title, Items: items}, true
}
