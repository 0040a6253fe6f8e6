package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/varezhka/mailwarden/internal/summarize"
)

// previewLimit caps the local-only preview of a blocked message.
const previewLimit = 200

// Summarizer produces a short summary for already-redacted text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// Decision is the routing outcome for one message. Blocked and forwarded are
// mutually exclusive: a blocked decision carries the local-only preview and
// its Summary is synthesized in-process, a forwarded decision carries the
// summarizer output.
type Decision struct {
	Blocked        bool
	Summary        string
	Preview        string   // blocked only
	Markers        []string // blocked only
	RedactionCount int      // blocked only
}

// Router is the confidentiality gate. When the gate trips, no content — not
// even the redacted text — reaches the external summarizer.
type Router struct {
	summarizer  Summarizer
	gateEnabled bool
	maxTokens   int
	logger      *slog.Logger
}

// NewRouter creates a router. gateEnabled=false turns the gate off entirely:
// keyword matches are then informational and every message is forwarded.
func NewRouter(s Summarizer, gateEnabled bool, maxTokens int, logger *slog.Logger) *Router {
	return &Router{
		summarizer:  s,
		gateEnabled: gateEnabled,
		maxTokens:   maxTokens,
		logger:      logger.With("component", "router"),
	}
}

// Route decides between the blocked and forwarded path for one redacted
// message. subject and body must already be redacted.
func (r *Router) Route(ctx context.Context, subject, body string, confidential bool, markers []string, tally map[string]int) (Decision, error) {
	if confidential && r.gateEnabled {
		total := 0
		for _, n := range tally {
			total += n
		}
		preview := buildPreview(body)

		r.logger.Info("confidential message detected, external summarization blocked",
			"markers", markers,
			"redactions", total,
		)

		return Decision{
			Blocked:        true,
			Summary:        blockedNotice(subject, markers, total, preview),
			Preview:        preview,
			Markers:        markers,
			RedactionCount: total,
		}, nil
	}

	summary, err := r.summarizer.Summarize(ctx, subject+"\n\n"+body, r.maxTokens)
	if err != nil {
		return Decision{}, fmt.Errorf("summarize message: %w", err)
	}
	return Decision{Summary: summary}, nil
}

// buildPreview extracts the first two sentences of the redacted body, hard
// capped at previewLimit characters, with a truncation marker when the body
// ran longer.
func buildPreview(body string) string {
	sentences := summarize.Sentences(strings.TrimSpace(body))
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	preview := strings.Join(sentences, " ")
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit])
	}
	if len([]rune(body)) > previewLimit {
		preview += "..."
	}
	return preview
}

// blockedNotice is the local-only stand-in for a summary. It never contains
// the full body.
func blockedNotice(subject string, markers []string, redactions int, preview string) string {
	return fmt.Sprintf(`CONFIDENTIAL EMAIL - external summarization blocked

Subject: %s

Confidential markers detected: %s
Items redacted: %d

Preview (local only):
%s

Full content was NOT sent to any external API`,
		subject, strings.Join(markers, ", "), redactions, preview)
}
