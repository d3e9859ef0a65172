package audit

import "context"

// Store is the append-only persistence contract for the message trail.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByTransaction(ctx context.Context, txnID string) ([]Entry, error)
}
