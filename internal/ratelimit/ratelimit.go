// Package ratelimit implements per-socket sliding-window admission control.
//
// Each connection carries one Limiter with an independent timestamp window per
// event category. Entries older than the category's window are pruned before
// every admission decision, so a burst is never double-counted across window
// boundaries.
package ratelimit

import "time"

// Category names one independently limited class of inbound events.
type Category string

const (
	CategoryJoin    Category = "join"    // join_room + rejoin_room
	CategoryAnswer  Category = "answer"  // submit_answer
	CategoryMessage Category = "message" // every inbound frame
)

// Policy is (max admissions, window size) for one category.
type Policy struct {
	Max    int
	Window time.Duration
}

// DefaultPolicies returns the stock per-socket policies.
func DefaultPolicies() map[Category]Policy {
	return map[Category]Policy{
		CategoryJoin:    {Max: 5, Window: 10 * time.Second},
		CategoryAnswer:  {Max: 6, Window: 10 * time.Second},
		CategoryMessage: {Max: 30, Window: 10 * time.Second},
	}
}

// Limiter tracks sliding windows for one socket. It is not safe for concurrent
// use; a socket's read loop is its only caller.
type Limiter struct {
	policies map[Category]Policy
	windows  map[Category][]time.Time
}

// New creates a Limiter governed by the given policies. Categories without a
// policy are always admitted.
func New(policies map[Category]Policy) *Limiter {
	return &Limiter{
		policies: policies,
		windows:  make(map[Category][]time.Time, len(policies)),
	}
}

// Allow prunes the category's window and admits the event if the remaining
// count is under the policy's limit. Admitted events are recorded at now.
func (l *Limiter) Allow(cat Category, now time.Time) bool {
	pol, ok := l.policies[cat]
	if !ok {
		return true
	}

	cutoff := now.Add(-pol.Window)
	window := l.windows[cat]

	// Only entries strictly older than the window are pruned; an entry aged
	// exactly one window still occupies its slot.
	idx := 0
	for idx < len(window) && window[idx].Before(cutoff) {
		idx++
	}
	window = window[idx:]

	if len(window) >= pol.Max {
		l.windows[cat] = window
		return false
	}
	l.windows[cat] = append(window, now)
	return true
}

// Count returns the current window occupancy for a category, pruned at now.
func (l *Limiter) Count(cat Category, now time.Time) int {
	pol, ok := l.policies[cat]
	if !ok {
		return 0
	}
	cutoff := now.Add(-pol.Window)
	n := 0
	for _, ts := range l.windows[cat] {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}
