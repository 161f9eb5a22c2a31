// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package analytics

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veilvote/veilvote/hasher"
	"github.com/veilvote/veilvote/models"
)

var (
	// ErrAudienceBelowK rejects whole queries, not just buckets: a poll
	// whose audience or turnout is under k has no disclosable breakdown.
	ErrAudienceBelowK = errors.New("audience below disclosure threshold")

	ErrBadDimension = errors.New("unknown dimension")

	// ErrSpanTooNarrow rejects time-bucketed queries against polls that
	// have not been open long enough to blur individual ballots.
	ErrSpanTooNarrow = errors.New("poll open too briefly for time-bucketed results")
)

// Dimensions a query may group by, mapped to vote columns. The whitelist
// is also what keeps dimension input out of SQL.
var dimColumns = map[string]string{
	"option":    "option_id",
	"cohort":    "cohort",
	"ts_bucket": "ts_bucket",
}

// noiseAmplitude bounds the deterministic jitter applied to live polls.
const noiseAmplitude = 3

// Engine computes k-anonymous result breakdowns. Buckets under k votes
// come back suppressed; a lone suppressed bucket drags the smallest
// disclosed one down with it so subtraction recovers nothing.
type Engine struct {
	db       *sql.DB
	noise    hasher.Hasher
	minSpan  time.Duration
	defaultK int
	logger   *zap.Logger
}

func NewEngine(db *sql.DB, noiseKey string, minSpan time.Duration, defaultK int, logger *zap.Logger) (*Engine, error) {
	noise, err := hasher.New(hasher.StrategyBlake2b, []byte(noiseKey))
	if err != nil {
		return nil, fmt.Errorf("failed to build noise hasher: %w", err)
	}
	return &Engine{db: db, noise: noise, minSpan: minSpan, defaultK: defaultK, logger: logger}, nil
}

// Aggregate groups a poll's votes by the given dimensions and applies the
// disclosure rules. The poll row is the caller's; status and audience
// checks happen here so every caller gets the same refusals.
func (e *Engine) Aggregate(ctx context.Context, poll models.Poll, dims []string) (*models.AnalyticsResult, error) {
	k := poll.MinK
	if k <= 0 {
		k = e.defaultK
	}

	cols, err := resolveDims(dims)
	if err != nil {
		return nil, err
	}
	if poll.AudienceSize < k {
		return nil, ErrAudienceBelowK
	}
	if containsDim(dims, "ts_bucket") {
		if poll.OpenedAt == nil || time.Since(*poll.OpenedAt) < e.minSpan {
			return nil, ErrSpanTooNarrow
		}
	}

	buckets, total, err := e.countBuckets(ctx, poll.ID, dims, cols)
	if err != nil {
		return nil, err
	}
	if total < k {
		return nil, ErrAudienceBelowK
	}

	suppress(buckets, k)
	live := poll.Status == models.StatusActive
	disclosedTotal := 0
	for i := range buckets {
		if buckets[i].Suppressed {
			continue
		}
		if live {
			buckets[i].Count = e.noisy(poll.ID, buckets[i], k)
		}
		disclosedTotal += buckets[i].Count
	}
	for i := range buckets {
		if !buckets[i].Suppressed && disclosedTotal > 0 {
			buckets[i].Percent = 100 * float64(buckets[i].Count) / float64(disclosedTotal)
		}
	}

	return &models.AnalyticsResult{
		PollID:     poll.ID,
		Dimensions: dims,
		Total:      total,
		K:          k,
		Buckets:    buckets,
		ComputedAt: time.Now().UTC(),
	}, nil
}

func (e *Engine) countBuckets(ctx context.Context, pollID string, dims, cols []string) ([]models.CohortBucket, int, error) {
	colList := strings.Join(cols, ", ")
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM vote WHERE poll_id = $1 GROUP BY %s ORDER BY %s`,
		colList, colList, colList)

	rows, err := e.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to aggregate votes: %w", err)
	}
	defer rows.Close()

	var buckets []models.CohortBucket
	total := 0
	for rows.Next() {
		values := make([]string, len(cols))
		scanTargets := make([]any, 0, len(cols)+1)
		for i := range values {
			scanTargets = append(scanTargets, &values[i])
		}
		var count int
		scanTargets = append(scanTargets, &count)
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan bucket: %w", err)
		}

		key := make(map[string]string, len(dims))
		for i, dim := range dims {
			key[dim] = values[i]
		}
		buckets = append(buckets, models.CohortBucket{Key: key, Count: count})
		total += count
	}
	return buckets, total, rows.Err()
}

// suppress hides buckets under k, then applies complementary suppression:
// with exactly one hidden bucket, total minus the visible ones would give
// it away, so the smallest visible bucket is hidden too. Ties break on
// the bucket key so reruns agree.
func suppress(buckets []models.CohortBucket, k int) {
	suppressed := 0
	for i := range buckets {
		if buckets[i].Count < k {
			hide(&buckets[i])
			suppressed++
		}
	}
	if suppressed != 1 {
		return
	}

	victim := -1
	for i := range buckets {
		if buckets[i].Suppressed {
			continue
		}
		if victim == -1 ||
			buckets[i].Count < buckets[victim].Count ||
			(buckets[i].Count == buckets[victim].Count && bucketKey(buckets[i]) < bucketKey(buckets[victim])) {
			victim = i
		}
	}
	if victim >= 0 {
		hide(&buckets[victim])
	}
}

func hide(b *models.CohortBucket) {
	b.Suppressed = true
	b.Count = 0
	b.Percent = 0
}

// noisy applies deterministic jitter to a live count. The same bucket
// always gets the same jitter, so polling mid-election shows a stable
// number that still is not the exact tally. Results never dip below k,
// which would look like a suppression boundary.
func (e *Engine) noisy(pollID string, b models.CohortBucket, k int) int {
	sum := e.noise.Sum([]byte(pollID), []byte(bucketKey(b)))
	offset := int(binary.BigEndian.Uint64(sum[:8])%(2*noiseAmplitude+1)) - noiseAmplitude
	n := b.Count + offset
	if n < k {
		n = k
	}
	return n
}

func bucketKey(b models.CohortBucket) string {
	dims := make([]string, 0, len(b.Key))
	for dim := range b.Key {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		parts = append(parts, dim+"="+b.Key[dim])
	}
	return strings.Join(parts, "|")
}

func resolveDims(dims []string) ([]string, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: at least one dimension required", ErrBadDimension)
	}
	cols := make([]string, 0, len(dims))
	seen := make(map[string]bool, len(dims))
	for _, dim := range dims {
		col, ok := dimColumns[dim]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBadDimension, dim)
		}
		if seen[dim] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrBadDimension, dim)
		}
		seen[dim] = true
		cols = append(cols, col)
	}
	return cols, nil
}

func containsDim(dims []string, want string) bool {
	for _, d := range dims {
		if d == want {
			return true
		}
	}
	return false
}
