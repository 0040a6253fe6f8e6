package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetState returns a runtime state value, or ErrNotFound.
func (db *DB) GetState(ctx context.Context, key string) (string, error) {
	var value string
	query := `SELECT value FROM runtime_state WHERE key = ?`
	err := db.GetContext(ctx, &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %q: %w", key, err)
	}
	return value, nil
}

// SetState stores a runtime state value, replacing any previous one.
func (db *DB) SetState(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO runtime_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set state %q: %w", key, err)
	}
	return nil
}
