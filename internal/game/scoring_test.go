package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreIncorrectIsZero(t *testing.T) {
	assert.Equal(t, 0, Score(false, 0, 10*time.Second))
	assert.Equal(t, 0, Score(false, 10*time.Second, 10*time.Second))
}

func TestScoreSpeedBonus(t *testing.T) {
	limit := 10 * time.Second

	assert.Equal(t, 1000, Score(true, 0, limit))
	assert.Equal(t, 750, Score(true, 5*time.Second, limit))
	assert.Equal(t, 500, Score(true, limit, limit))
}

func TestScoreClampsElapsed(t *testing.T) {
	limit := 10 * time.Second

	assert.Equal(t, 1000, Score(true, -time.Second, limit))
	assert.Equal(t, 500, Score(true, limit+time.Minute, limit))
}

func TestScoreMonotonicInElapsed(t *testing.T) {
	limit := 20 * time.Second
	prev := Score(true, 0, limit)
	for e := time.Second; e <= limit; e += time.Second {
		cur := Score(true, e, limit)
		assert.LessOrEqual(t, cur, prev, "score must not grow with elapsed time")
		prev = cur
	}
}

func TestClampTimeLimit(t *testing.T) {
	assert.Equal(t, minTimeLimit, clampTimeLimit(time.Second))
	assert.Equal(t, 30*time.Second, clampTimeLimit(30*time.Second))
	assert.Equal(t, maxTimeLimit, clampTimeLimit(time.Hour))
}
