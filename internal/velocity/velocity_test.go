package velocity

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("UnknownAccount", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		count, err := tracker.CountWithin(ctx, "acct-missing", base, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for unknown account, got %d", count)
		}
	})

	t.Run("CountsWithinWindow", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		for i := 0; i < 4; i++ {
			ts := base.Add(time.Duration(i) * 10 * time.Minute)
			if err := tracker.Record(ctx, "acct-001", ts); err != nil {
				t.Fatalf("record failed: %v", err)
			}
		}

		now := base.Add(30 * time.Minute)
		count, err := tracker.CountWithin(ctx, "acct-001", now, 25*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Entries at +10m, +20m, +30m are within [now-25m, now]; +0m is not.
		if count != 3 {
			t.Errorf("expected count 3, got %d", count)
		}
	})

	t.Run("BoundaryInclusive", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		if err := tracker.Record(ctx, "acct-002", base); err != nil {
			t.Fatalf("record failed: %v", err)
		}

		now := base.Add(time.Hour)
		count, err := tracker.CountWithin(ctx, "acct-002", now, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("timestamp exactly at window boundary should count, got %d", count)
		}

		count, _ = tracker.CountWithin(ctx, "acct-002", now.Add(time.Millisecond), time.Hour)
		if count != 0 {
			t.Errorf("timestamp just outside window should not count, got %d", count)
		}
	})

	t.Run("FutureEntriesExcluded", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		tracker.Record(ctx, "acct-003", base.Add(5*time.Minute))
		tracker.Record(ctx, "acct-003", base)

		count, _ := tracker.CountWithin(ctx, "acct-003", base, time.Hour)
		if count != 1 {
			t.Errorf("entries after the query instant should not count, got %d", count)
		}
	})

	t.Run("OutOfOrderArrival", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		// Minor out-of-order delivery must not crash or miscount.
		tracker.Record(ctx, "acct-004", base.Add(2*time.Minute))
		tracker.Record(ctx, "acct-004", base.Add(1*time.Minute))
		tracker.Record(ctx, "acct-004", base.Add(3*time.Minute))

		count, err := tracker.CountWithin(ctx, "acct-004", base.Add(3*time.Minute), time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 3 {
			t.Errorf("expected count 3 after out-of-order records, got %d", count)
		}
	})

	t.Run("PrunesBeyondMaxWindow", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		tracker.Record(ctx, "acct-005", base)
		tracker.Record(ctx, "acct-005", base.Add(2*time.Hour))

		// The first entry is now more than maxWindow behind the latest and
		// must have been discarded.
		count, _ := tracker.CountWithin(ctx, "acct-005", base.Add(2*time.Hour), 3*time.Hour)
		if count != 1 {
			t.Errorf("expected pruned history to hold 1 entry, got %d", count)
		}
	})

	t.Run("EmptyAccountsForgotten", func(t *testing.T) {
		tracker := NewMemoryTracker(time.Hour)
		defer tracker.Close()

		for i := 0; i < 50; i++ {
			tracker.Record(ctx, fmt.Sprintf("acct-%03d", i), base)
		}
		if got := tracker.Accounts(); got != 50 {
			t.Fatalf("expected 50 tracked accounts, got %d", got)
		}

		// A query far in the future prunes the queried account entirely.
		tracker.CountWithin(ctx, "acct-000", base.Add(24*time.Hour), time.Hour)
		if got := tracker.Accounts(); got != 49 {
			t.Errorf("expected stale account to be dropped, got %d tracked", got)
		}
	})
}

func TestMemoryTrackerConcurrentAccess(t *testing.T) {
	tracker := NewMemoryTracker(time.Hour)
	defer tracker.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			acct := fmt.Sprintf("acct-%d", g%2)
			for i := 0; i < 100; i++ {
				tracker.Record(ctx, acct, base.Add(time.Duration(i)*time.Second))
				tracker.CountWithin(ctx, acct, base.Add(time.Duration(i)*time.Second), time.Minute)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	count, err := tracker.CountWithin(ctx, "acct-0", base.Add(100*time.Second), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 400 {
		t.Errorf("expected 400 entries for acct-0, got %d", count)
	}
}
