package models

import "time"

// Message is a single inbound mail item. It is immutable once fetched.
type Message struct {
	ID         string    // Message-ID header, or "uid:<n>" when absent
	UID        uint32    // IMAP UID, used for flag updates
	Sender     string    // "Name <addr>" or bare address
	Subject    string    // decoded subject
	Body       string    // plain text, HTML already converted
	ReceivedAt time.Time // envelope date
	Malformed  bool      // body could not be decoded; skip and never retry
}
