package domain

import "errors"

var (
	// ErrValidation marks a malformed transaction rejected before scoring.
	// A rejected transaction is absent from all stores and outputs.
	ErrValidation = errors.New("invalid transaction")

	// ErrUnknownPattern marks a pattern tag outside the closed catalog.
	ErrUnknownPattern = errors.New("pattern not in catalog")

	// ErrInvariant marks an internal bug, such as a score escaping its
	// bounds after clamping. The processing call fails and the transaction
	// is dropped rather than half-committed.
	ErrInvariant = errors.New("invariant violation")

	// ErrNotFound is returned by the rule store for missing records.
	ErrNotFound = errors.New("record not found")
)
