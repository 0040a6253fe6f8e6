package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/varezhka/mailwarden/internal/database"
	"github.com/varezhka/mailwarden/internal/formatter"
	"github.com/varezhka/mailwarden/internal/redact"
	"github.com/varezhka/mailwarden/pkg/models"
)

const lastCheckKey = "last_check_at"

// Source yields unread messages and marks them consumed.
type Source interface {
	FetchUnseen(ctx context.Context) ([]models.Message, error)
	MarkSeen(ctx context.Context, msg models.Message) error
}

// Notifier delivers a text payload and returns a delivery identifier.
type Notifier interface {
	Send(ctx context.Context, text string) (string, error)
}

// Ledger is the persisted set of already-processed message identifiers.
type Ledger interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

// SummaryLog is the persisted, most-recent-first record log.
type SummaryLog interface {
	InsertSummary(ctx context.Context, rec *models.SummaryRecord) error
}

// StateStore persists small runtime values across restarts.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Pipeline processes messages one at a time in arrival order: redact, route,
// record, format, deliver. No per-message failure aborts a cycle.
type Pipeline struct {
	source       Source
	notifier     Notifier
	redactor     *redact.Redactor
	router       *Router
	formatter    *formatter.Formatter
	ledger       Ledger
	summaryLog   SummaryLog
	state        StateStore
	maxPayload   int
	domainFilter string // lowercase; empty disables filtering
	logger       *slog.Logger
}

// Deps collects everything a Pipeline needs.
type Deps struct {
	Source       Source
	Notifier     Notifier
	Redactor     *redact.Redactor
	Router       *Router
	Formatter    *formatter.Formatter
	Ledger       Ledger
	SummaryLog   SummaryLog
	State        StateStore
	MaxPayload   int
	DomainFilter string
	Logger       *slog.Logger
}

// New creates a pipeline.
func New(deps Deps) *Pipeline {
	maxPayload := deps.MaxPayload
	if maxPayload <= 0 {
		maxPayload = 1500
	}
	return &Pipeline{
		source:       deps.Source,
		notifier:     deps.Notifier,
		redactor:     deps.Redactor,
		router:       deps.Router,
		formatter:    deps.Formatter,
		ledger:       deps.Ledger,
		summaryLog:   deps.SummaryLog,
		state:        deps.State,
		maxPayload:   maxPayload,
		domainFilter: strings.ToLower(deps.DomainFilter),
		logger:       deps.Logger.With("component", "pipeline"),
	}
}

// Bootstrap marks all currently-unseen messages as processed on the very
// first run, so only mail arriving from now on gets notified. Subsequent
// starts are no-ops.
func (p *Pipeline) Bootstrap(ctx context.Context) error {
	_, err := p.state.GetState(ctx, lastCheckKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("read last check state: %w", err)
	}

	p.logger.Info("first run detected, marking existing unread mail as processed")
	messages, err := p.source.FetchUnseen(ctx)
	if err != nil {
		return fmt.Errorf("fetch backlog: %w", err)
	}
	for _, msg := range messages {
		if err := p.ledger.MarkProcessed(ctx, msg.ID); err != nil {
			p.logger.Warn("failed to record backlog message", "message_id", msg.ID, "error", err)
		}
	}
	p.logger.Info("backlog recorded", "count", len(messages))

	return p.touchLastCheck(ctx)
}

// RunCycle fetches unseen messages and processes them in arrival order.
// Transport errors abort the cycle (retried next poll); per-message errors
// are logged and skipped.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	messages, err := p.source.FetchUnseen(ctx)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	if len(messages) > 0 {
		p.logger.Info("fetched unread messages", "count", len(messages))
	}

	for _, msg := range messages {
		if err := p.processMessage(ctx, msg); err != nil {
			p.logger.Error("failed to process message", "message_id", msg.ID, "error", err)
		}
	}

	if err := p.touchLastCheck(ctx); err != nil {
		p.logger.Warn("failed to persist last check time", "error", err)
	}
	return nil
}

func (p *Pipeline) processMessage(ctx context.Context, msg models.Message) error {
	logger := p.logger.With("message_id", msg.ID, "processing_id", uuid.NewString())

	done, err := p.ledger.IsProcessed(ctx, msg.ID)
	if err != nil {
		logger.Warn("ledger lookup failed, processing anyway", "error", err)
	}
	if done {
		logger.Debug("message already processed, skipping")
		return nil
	}

	if p.domainFilter != "" && !strings.Contains(strings.ToLower(msg.Sender), p.domainFilter) {
		logger.Info("sender outside domain filter, skipping", "sender", msg.Sender)
		p.markProcessed(ctx, logger, msg.ID)
		return nil
	}

	if msg.Malformed {
		// Marked processed so a broken message is never retried forever.
		logger.Warn("message could not be decoded, skipping")
		if err := p.source.MarkSeen(ctx, msg); err != nil {
			logger.Warn("failed to mark malformed message seen", "error", err)
		}
		p.markProcessed(ctx, logger, msg.ID)
		return nil
	}

	bodyRes := p.redactor.Redact(msg.Body)
	subjRes := p.redactor.Redact(msg.Subject)
	tally := mergeTallies(bodyRes.Tally, subjRes.Tally)
	confidential := bodyRes.Confidential || subjRes.Confidential
	markers := mergeMarkers(bodyRes.Markers, subjRes.Markers)

	decision, err := p.router.Route(ctx, subjRes.Text, bodyRes.Text, confidential, markers, tally)
	if err != nil {
		return fmt.Errorf("route message: %w", err)
	}

	rec := &models.SummaryRecord{
		MessageID:    msg.ID,
		Sender:       msg.Sender,
		Subject:      subjRes.Text,
		Summary:      decision.Summary,
		Confidential: confidential,
		Blocked:      decision.Blocked,
		CreatedAt:    time.Now(),
	}
	if err := p.summaryLog.InsertSummary(ctx, rec); err != nil {
		// Durability gap is acceptable; it must only be visible in logs.
		logger.Warn("failed to persist summary record", "error", err)
	}

	text := p.formatter.Format(msg.Sender, subjRes.Text, decision.Summary, decision.Blocked, tally)
	deliveryID, err := p.notifier.Send(ctx, truncate(text, p.maxPayload))
	if err != nil {
		// Not marked processed: the message is retried on a later cycle.
		return fmt.Errorf("deliver notification: %w", err)
	}

	logger.Info("notification delivered",
		"delivery_id", deliveryID,
		"blocked", decision.Blocked,
		"confidential", confidential,
	)

	if err := p.source.MarkSeen(ctx, msg); err != nil {
		logger.Warn("failed to mark message seen", "error", err)
	}
	p.markProcessed(ctx, logger, msg.ID)
	return nil
}

func (p *Pipeline) markProcessed(ctx context.Context, logger *slog.Logger, id string) {
	if err := p.ledger.MarkProcessed(ctx, id); err != nil {
		logger.Warn("failed to update idempotency ledger", "error", err)
	}
}

func (p *Pipeline) touchLastCheck(ctx context.Context) error {
	return p.state.SetState(ctx, lastCheckKey, time.Now().Format(time.RFC3339))
}

func mergeTallies(a, b map[string]int) map[string]int {
	out := make(map[string]int, len(a))
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}

func mergeMarkers(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, m := range append(append([]string{}, a...), b...) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// truncate enforces the notifier payload cap. This is the delivery boundary:
// the formatter itself never truncates.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
