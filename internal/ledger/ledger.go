// Package ledger provides the bounded most-recent-first store of processed
// transactions.
package ledger

import (
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	// RetentionCap bounds the ledger; inserting beyond it evicts the
	// oldest entry.
	RetentionCap = 100

	// DisplayCap bounds filtered views unless the caller asks for the
	// full retained set.
	DisplayCap = 20
)

// Filter narrows a ledger query. Zero values mean "no constraint".
type Filter struct {
	Level   domain.RiskLevel
	Pattern domain.Pattern

	// Full returns the whole retained set instead of capping at the
	// display limit. Used by the export surface.
	Full bool
}

// Ledger holds assessed transactions, most-recent-first. Entries are never
// mutated after insertion; reads return copies. Safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries []domain.AssessedTransaction // most-recent-first
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		entries: make([]domain.AssessedTransaction, 0, RetentionCap),
	}
}

// Insert prepends the assessed transaction, evicting the oldest entry once
// the retention cap is exceeded.
func (l *Ledger) Insert(atx *domain.AssessedTransaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append([]domain.AssessedTransaction{*atx}, l.entries...)
	if len(l.entries) > RetentionCap {
		l.entries = l.entries[:RetentionCap]
	}
}

// Query returns entries matching the filter, most-recent-first, capped at
// the display limit unless Full is set.
func (l *Ledger) Query(f Filter) []domain.AssessedTransaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	limit := DisplayCap
	if f.Full {
		limit = len(l.entries)
	}

	out := make([]domain.AssessedTransaction, 0, limit)
	for _, entry := range l.entries {
		if f.Level != "" && entry.Assessment.Level != f.Level {
			continue
		}
		if f.Pattern != "" && !matchesPattern(entry, f.Pattern) {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Recent returns the n most recent entries, newest first.
func (l *Ledger) Recent(n int) []domain.AssessedTransaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]domain.AssessedTransaction, n)
	copy(out, l.entries[:n])
	return out
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func matchesPattern(entry domain.AssessedTransaction, p domain.Pattern) bool {
	for _, matched := range entry.Assessment.Patterns {
		if matched == p {
			return true
		}
	}
	return false
}
