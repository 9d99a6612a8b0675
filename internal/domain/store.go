package domain

import "context"

// TableStore holds one ObservationTable per session. Swap must replace the
// table atomically: readers see either the previous table or the new one.
type TableStore interface {
	Load(ctx context.Context, sessionID string) (*Table, error)
	Swap(ctx context.Context, sessionID string, table *Table) error
	Delete(ctx context.Context, sessionID string) error
}

// RefreshOutcome describes what a refresh trigger did.
type RefreshOutcome string

const (
	RefreshOutcomeRefreshed RefreshOutcome = "refreshed"
	RefreshOutcomeSkipped   RefreshOutcome = "skipped"
	RefreshOutcomeFailed    RefreshOutcome = "failed"
)
