package game

import (
	"math"
	"time"
)

const (
	basePoints    = 500
	maxSpeedBonus = 500
	minTimeLimit  = 5 * time.Second
	maxTimeLimit  = 120 * time.Second
	timerSlack    = 100 * time.Millisecond
)

// Score converts a submission into points. Incorrect answers score zero.
// Correct answers earn the base plus a speed bonus decaying linearly from
// maxSpeedBonus at elapsed zero to nothing at the deadline. Elapsed time is
// clamped into [0, limit] first, so a late-but-accepted submission can never
// produce a negative or oversized bonus.
func Score(correct bool, elapsed, limit time.Duration) int {
	if !correct || limit <= 0 {
		if !correct {
			return 0
		}
		return basePoints
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	speedRatio := 1 - float64(elapsed)/float64(limit)
	return basePoints + int(math.Round(maxSpeedBonus*speedRatio))
}

// clampTimeLimit bounds a configured question time limit into the supported
// range.
func clampTimeLimit(d time.Duration) time.Duration {
	if d < minTimeLimit {
		return minTimeLimit
	}
	if d > maxTimeLimit {
		return maxTimeLimit
	}
	return d
}
