// Package patterns maintains running counts of catalog pattern matches.
package patterns

import (
	"fmt"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Aggregator counts how many processed transactions matched each catalog
// pattern. Counters start at zero for every catalog entry and only ever
// increase during the engine's lifetime.
type Aggregator struct {
	mu     sync.RWMutex
	counts map[domain.Pattern]int64
}

// NewAggregator creates an aggregator with every catalog pattern at zero.
func NewAggregator() *Aggregator {
	counts := make(map[domain.Pattern]int64, len(domain.Catalog()))
	for _, p := range domain.Catalog() {
		counts[p] = 0
	}
	return &Aggregator{counts: counts}
}

// Increment adds one to each named counter. The catalog is closed: an
// unknown tag rejects the whole call and no counter is touched.
func (a *Aggregator) Increment(tags []domain.Pattern) error {
	for _, tag := range tags {
		if !tag.Known() {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPattern, tag)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tag := range tags {
		a.counts[tag]++
	}
	return nil
}

// Snapshot returns current counts for all catalog entries, including zeros.
func (a *Aggregator) Snapshot() map[domain.Pattern]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[domain.Pattern]int64, len(a.counts))
	for p, n := range a.counts {
		out[p] = n
	}
	return out
}
