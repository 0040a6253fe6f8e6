package summarize

import "context"

// Noop is the client selected when no API credential is configured. It always
// reports unavailability so the Service falls back to the local extractive
// summary; callers never branch on whether a live client exists.
type Noop struct{}

func (Noop) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	return "", ErrUnavailable
}
