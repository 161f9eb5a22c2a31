// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package analytics

import (
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	ErrBudgetExceeded = errors.New("query budget exceeded")

	// ErrQueryOverlap rejects near-duplicate dimension sets from the same
	// requester on the same poll. Differencing two overlapping breakdowns
	// is the standard way to pry a suppressed bucket open.
	ErrQueryOverlap = errors.New("query overlaps a recent query")
)

// overlapThreshold is the Jaccard similarity at or above which two
// distinct dimension sets are treated as a differencing attempt. Subset
// relations are rejected outright: a coarser marginal of an earlier
// breakdown recovers suppressed buckets by subtraction no matter how low
// the score.
const overlapThreshold = 0.5

type pastQuery struct {
	pollID string
	dims   map[string]bool
}

type requesterState struct {
	mu          sync.Mutex
	windowStart time.Time
	spent       int
	queries     []pastQuery
}

// Guard enforces a per-requester query budget and an overlap check on
// analytics reads. State is per process; a restart forgives history, the
// budget window does not.
type Guard struct {
	budget int
	window time.Duration
	states *xsync.Map[string, *requesterState]
	now    func() time.Time
}

func NewGuard(budget int, window time.Duration) *Guard {
	return &Guard{
		budget: budget,
		window: window,
		states: xsync.NewMap[string, *requesterState](),
		now:    time.Now,
	}
}

// Admit charges one query against the requester's budget and checks it
// against their recent queries. Both checks run under the requester's
// lock, so concurrent requests cannot slip past the budget together.
// Exact repeats of an earlier query are admitted; re-reading a breakdown
// already disclosed reveals nothing new.
func (g *Guard) Admit(requester, pollID string, dims []string) error {
	state, _ := g.states.LoadOrStore(requester, &requesterState{})
	state.mu.Lock()
	defer state.mu.Unlock()

	now := g.now()
	if state.windowStart.IsZero() || now.Sub(state.windowStart) > g.window {
		state.windowStart = now
		state.spent = 0
		state.queries = state.queries[:0]
	}

	dimSet := make(map[string]bool, len(dims))
	for _, d := range dims {
		dimSet[d] = true
	}

	for _, past := range state.queries {
		if past.pollID != pollID {
			continue
		}
		if sameSet(past.dims, dimSet) {
			return nil
		}
		if subset(past.dims, dimSet) || subset(dimSet, past.dims) {
			return ErrQueryOverlap
		}
		if jaccard(past.dims, dimSet) >= overlapThreshold {
			return ErrQueryOverlap
		}
	}

	if state.spent >= g.budget {
		return ErrBudgetExceeded
	}
	state.spent++
	state.queries = append(state.queries, pastQuery{pollID: pollID, dims: dimSet})
	return nil
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func subset(a, b map[string]bool) bool {
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func jaccard(a, b map[string]bool) float64 {
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
