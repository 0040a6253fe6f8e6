package summarize

import (
	"context"
	"errors"
	"log/slog"
)

// ErrUnavailable is reported by a Client that is not configured or cannot be
// reached. The Service degrades to the local fallback instead of surfacing it.
var ErrUnavailable = errors.New("summarization service unavailable")

// Client produces a short summary for already-redacted text.
type Client interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// Service wraps a Client with the local extractive fallback. It never returns
// an error for well-formed input: any client failure, including abnormal
// completion, degrades to the deterministic local summary.
type Service struct {
	client Client
	logger *slog.Logger
}

// NewService creates a summarization service over the given client.
func NewService(client Client, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		logger: logger.With("component", "summarizer"),
	}
}

// Summarize returns the client's summary, or the local extractive summary if
// the client fails. Empty input yields an empty summary.
func (s *Service) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	if text == "" {
		return "", nil
	}

	out, err := s.client.Summarize(ctx, text, maxTokens)
	if err == nil && out != "" {
		return out, nil
	}

	if errors.Is(err, ErrUnavailable) {
		s.logger.Debug("summarization service not available, using local fallback")
	} else {
		s.logger.Warn("summarization call failed, using local fallback", "error", err)
	}
	return Fallback(text), nil
}
