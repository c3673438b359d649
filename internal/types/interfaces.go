// internal/types/interfaces.go
package types

import (
	"context"
)

type RecordStore interface {
	ListPending(ctx context.Context) ([]*SessionRecord, error)
	MoveToProcessed(ctx context.Context, records []*SessionRecord) []error
}

type Ledger interface {
	Append(ctx context.Context, entry *LedgerEntry) error
	Tail(ctx context.Context, limit int) ([]*LedgerEntry, error)
}
