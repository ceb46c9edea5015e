// Package velocity tracks per-account transaction timing for sliding-window
// frequency queries.
package velocity

import (
	"context"
	"sync"
	"time"
)

// Tracker answers "how many transactions did this account make in the last
// window" as of a given instant. Unknown accounts yield zero.
type Tracker interface {
	// Record appends a timestamp to the account's history.
	Record(ctx context.Context, accountID string, ts time.Time) error

	// CountWithin returns the number of recorded timestamps t satisfying
	// now-window <= t <= now. A timestamp exactly at the window boundary
	// counts as within.
	CountWithin(ctx context.Context, accountID string, now time.Time, window time.Duration) (int, error)

	// Lifecycle
	Close() error
}

// MemoryTracker is the Community tier tracker: a mutex-guarded map of
// per-account timestamp slices. Entries strictly older than the maximum
// window the tracker is ever asked about are pruned lazily, bounding memory
// to active accounts times recent activity.
type MemoryTracker struct {
	mu        sync.Mutex
	maxWindow time.Duration
	accounts  map[string]*accountRecord
}

type accountRecord struct {
	// timestamps in arrival order; minor out-of-order entries are tolerated
	// since both pruning and counting compare against explicit instants.
	timestamps []time.Time
	latest     time.Time
}

// NewMemoryTracker creates an in-memory tracker. maxWindow must cover the
// largest window any caller will query; shorter histories are pruned.
func NewMemoryTracker(maxWindow time.Duration) *MemoryTracker {
	if maxWindow <= 0 {
		maxWindow = time.Hour
	}
	return &MemoryTracker{
		maxWindow: maxWindow,
		accounts:  make(map[string]*accountRecord),
	}
}

// Record appends a timestamp to the account's history.
func (t *MemoryTracker) Record(ctx context.Context, accountID string, ts time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.accounts[accountID]
	if !ok {
		rec = &accountRecord{}
		t.accounts[accountID] = rec
	}

	rec.timestamps = append(rec.timestamps, ts)
	if ts.After(rec.latest) {
		rec.latest = ts
	}

	t.prune(accountID, rec)
	return nil
}

// CountWithin counts timestamps in [now-window, now], boundary inclusive.
func (t *MemoryTracker) CountWithin(ctx context.Context, accountID string, now time.Time, window time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.accounts[accountID]
	if !ok {
		return 0, nil
	}

	if now.After(rec.latest) {
		rec.latest = now
		t.prune(accountID, rec)
	}

	cutoff := now.Add(-window)
	count := 0
	for _, ts := range rec.timestamps {
		if !ts.Before(cutoff) && !ts.After(now) {
			count++
		}
	}
	return count, nil
}

// prune drops entries strictly older than maxWindow behind the account's
// latest observed instant. Caller must hold the mutex.
func (t *MemoryTracker) prune(accountID string, rec *accountRecord) {
	cutoff := rec.latest.Add(-t.maxWindow)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept

	if len(rec.timestamps) == 0 {
		delete(t.accounts, accountID)
	}
}

// Accounts returns the number of accounts currently tracked.
func (t *MemoryTracker) Accounts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.accounts)
}

// Close clears all tracked state.
func (t *MemoryTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accounts = make(map[string]*accountRecord)
	return nil
}
