package game

import (
	"time"

	"github.com/google/uuid"

	"quizrally/internal/model"
)

// submission is one accepted answer. The first accepted submission per player
// is final; retries are acknowledged as duplicates and never overwrite it.
type submission struct {
	Choice     string
	ReceivedAt time.Time
}

// questionInstance is the ephemeral state of one question being played. A new
// instance (with a fresh id) is allocated every time a question phase starts,
// so a submission against an earlier showing of the same deck item can never
// land on the current one.
type questionInstance struct {
	ID          string
	Item        model.DeckItem
	StartedAt   time.Time
	TimeLimit   time.Duration
	Submissions map[string]submission
}

func newQuestionInstance(item model.DeckItem, limit time.Duration, now time.Time) *questionInstance {
	return &questionInstance{
		ID:          "qinst_" + uuid.NewString(),
		Item:        item,
		StartedAt:   now,
		TimeLimit:   limit,
		Submissions: make(map[string]submission),
	}
}

func (q *questionInstance) deadline() time.Time {
	return q.StartedAt.Add(q.TimeLimit)
}

func (q *questionInstance) record(playerID, choice string, now time.Time) {
	q.Submissions[playerID] = submission{Choice: choice, ReceivedAt: now}
}
