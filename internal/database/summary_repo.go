package database

import (
	"context"
	"fmt"
	"time"

	"github.com/varezhka/mailwarden/pkg/models"
)

// InsertSummary appends a record to the summary log. Records are never
// updated after creation.
func (db *DB) InsertSummary(ctx context.Context, rec *models.SummaryRecord) error {
	query := `
		INSERT INTO summary_records (message_id, sender, subject, summary, confidential, blocked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	result, err := db.ExecContext(ctx, query,
		rec.MessageID,
		rec.Sender,
		rec.Subject,
		rec.Summary,
		rec.Confidential,
		rec.Blocked,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListRecentSummaries returns up to limit records, most recent first.
func (db *DB) ListRecentSummaries(ctx context.Context, limit int) ([]models.SummaryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []models.SummaryRecord
	query := `SELECT * FROM summary_records ORDER BY created_at DESC, id DESC LIMIT ?`
	if err := db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list summary records: %w", err)
	}
	return recs, nil
}
