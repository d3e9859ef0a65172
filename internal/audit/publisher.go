package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher captures message trail entries. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. Trail
// failures are logged, never propagated: the trail must not break message
// processing.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Record appends one observation, filling in id and timestamp when absent.
func (p *Publisher) Record(ctx context.Context, entry Entry) {
	if p == nil || p.store == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, entry); err != nil {
		p.logger.WarnContext(ctx, "message trail append failed",
			"transaction_id", entry.TransactionID,
			"action", entry.Action,
			"error", err.Error(),
		)
	}
}

// List returns the trail for one transaction in insertion order.
func (p *Publisher) List(ctx context.Context, txnID string) ([]Entry, error) {
	return p.store.ListByTransaction(ctx, txnID)
}
