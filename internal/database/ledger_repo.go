package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// IsProcessed reports whether a message identifier is already in the
// idempotency ledger.
func (db *DB) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var n int
	query := `SELECT COUNT(1) FROM processed_messages WHERE message_id = ?`
	if err := db.GetContext(ctx, &n, query, messageID); err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records a message identifier in the ledger. Recording the
// same identifier twice is a no-op, so crash-and-restart retries stay safe.
func (db *DB) MarkProcessed(ctx context.Context, messageID string) error {
	query := `INSERT OR IGNORE INTO processed_messages (message_id, processed_at) VALUES (?, ?)`
	if _, err := db.ExecContext(ctx, query, messageID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

// ProcessedCount returns the number of ledger entries.
func (db *DB) ProcessedCount(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(1) FROM processed_messages`); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return n, nil
}
