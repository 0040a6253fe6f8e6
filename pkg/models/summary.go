package models

import "time"

// SummaryRecord is one entry of the persisted summary log. Records are only
// ever appended; the log is read newest-first.
type SummaryRecord struct {
	ID           int64     `db:"id" json:"id"`
	MessageID    string    `db:"message_id" json:"message_id"`
	Sender       string    `db:"sender" json:"sender"`
	Subject      string    `db:"subject" json:"subject"` // redacted subject
	Summary      string    `db:"summary" json:"summary"`
	Confidential bool      `db:"confidential" json:"is_confidential"`
	Blocked      bool      `db:"blocked" json:"was_blocked"`
	CreatedAt    time.Time `db:"created_at" json:"timestamp"`
}
