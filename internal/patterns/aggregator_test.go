package patterns

import (
	"errors"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestAggregatorStartsAtZero(t *testing.T) {
	agg := NewAggregator()

	snap := agg.Snapshot()
	if len(snap) != len(domain.Catalog()) {
		t.Fatalf("expected %d catalog entries, got %d", len(domain.Catalog()), len(snap))
	}
	for p, n := range snap {
		if n != 0 {
			t.Errorf("pattern %s should start at 0, got %d", p, n)
		}
	}
}

func TestAggregatorIncrement(t *testing.T) {
	agg := NewAggregator()

	if err := agg.Increment([]domain.Pattern{domain.PatternStructuring, domain.PatternVelocity}); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if err := agg.Increment([]domain.Pattern{domain.PatternStructuring}); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	snap := agg.Snapshot()
	if snap[domain.PatternStructuring] != 2 {
		t.Errorf("Structuring = %d, want 2", snap[domain.PatternStructuring])
	}
	if snap[domain.PatternVelocity] != 1 {
		t.Errorf("Velocity = %d, want 1", snap[domain.PatternVelocity])
	}
	if snap[domain.PatternSmurfing] != 0 {
		t.Errorf("Smurfing = %d, want 0", snap[domain.PatternSmurfing])
	}
}

func TestAggregatorRejectsUnknownTag(t *testing.T) {
	agg := NewAggregator()

	err := agg.Increment([]domain.Pattern{domain.PatternVelocity, "Not A Pattern"})
	if !errors.Is(err, domain.ErrUnknownPattern) {
		t.Fatalf("expected ErrUnknownPattern, got %v", err)
	}

	// The whole call is rejected; no counter may have moved.
	if n := agg.Snapshot()[domain.PatternVelocity]; n != 0 {
		t.Errorf("partial increment observed: Velocity = %d", n)
	}
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	agg := NewAggregator()
	snap := agg.Snapshot()
	snap[domain.PatternVelocity] = 999

	if n := agg.Snapshot()[domain.PatternVelocity]; n != 0 {
		t.Errorf("snapshot mutation leaked into aggregator: %d", n)
	}
}
