package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists the message trail in PostgreSQL for deployments that
// need it to survive restarts.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool to the given database URL and
// ensures the trail table exists.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS message_trail (
			id             TEXT PRIMARY KEY,
			direction      TEXT NOT NULL,
			action         TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			message_id     TEXT NOT NULL,
			sender_id      TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			error          TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS message_trail_txn_idx ON message_trail (transaction_id);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate message trail: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO message_trail
			(id, direction, action, transaction_id, message_id, sender_id, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Direction, entry.Action, entry.TransactionID,
		entry.MessageID, entry.SenderID, entry.Status, entry.Error, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append trail entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByTransaction(ctx context.Context, txnID string) ([]Entry, error) {
	query := `
		SELECT id, direction, action, transaction_id, message_id, sender_id, status, error, created_at
		FROM message_trail
		WHERE transaction_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, txnID)
	if err != nil {
		return nil, fmt.Errorf("list trail entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Direction, &e.Action, &e.TransactionID,
			&e.MessageID, &e.SenderID, &e.Status, &e.Error, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trail entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
