package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/varezhka/mailwarden/internal/database"
	"github.com/varezhka/mailwarden/internal/formatter"
	"github.com/varezhka/mailwarden/internal/redact"
	"github.com/varezhka/mailwarden/pkg/models"
)

type fakeSource struct {
	msgs     []models.Message
	seen     map[string]bool
	fetchErr error
}

func (f *fakeSource) FetchUnseen(ctx context.Context) ([]models.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []models.Message
	for _, m := range f.msgs {
		if !f.seen[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) MarkSeen(ctx context.Context, msg models.Message) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[msg.ID] = true
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, text)
	return "42", nil
}

type fakeLedger struct {
	set      map[string]bool
	writeErr error
}

func (f *fakeLedger) IsProcessed(ctx context.Context, id string) (bool, error) {
	return f.set[id], nil
}

func (f *fakeLedger) MarkProcessed(ctx context.Context, id string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.set == nil {
		f.set = make(map[string]bool)
	}
	f.set[id] = true
	return nil
}

type fakeSummaryLog struct {
	recs      []models.SummaryRecord
	insertErr error
}

func (f *fakeSummaryLog) InsertSummary(ctx context.Context, rec *models.SummaryRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.recs = append(f.recs, *rec)
	return nil
}

type fakeState map[string]string

func (f fakeState) GetState(ctx context.Context, key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", database.ErrNotFound
	}
	return v, nil
}

func (f fakeState) SetState(ctx context.Context, key, value string) error {
	f[key] = value
	return nil
}

type env struct {
	pipeline   *Pipeline
	source     *fakeSource
	notifier   *fakeNotifier
	summarizer *recordingSummarizer
	ledger     *fakeLedger
	summaryLog *fakeSummaryLog
	state      fakeState
}

func newEnv(t *testing.T, mutate func(*Deps)) *env {
	t.Helper()
	e := &env{
		source:     &fakeSource{},
		notifier:   &fakeNotifier{},
		summarizer: &recordingSummarizer{out: "Short summary."},
		ledger:     &fakeLedger{set: map[string]bool{}},
		summaryLog: &fakeSummaryLog{},
		state:      fakeState{},
	}
	logger := testLogger()
	deps := Deps{
		Source:     e.source,
		Notifier:   e.notifier,
		Redactor:   redact.New("confidential,secret"),
		Router:     NewRouter(e.summarizer, true, 300, logger),
		Formatter:  formatter.New(),
		Ledger:     e.ledger,
		SummaryLog: e.summaryLog,
		State:      e.state,
		MaxPayload: 1500,
		Logger:     logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	e.pipeline = New(deps)
	return e
}

func msg(id, sender, subject, body string) models.Message {
	return models.Message{ID: id, Sender: sender, Subject: subject, Body: body}
}

func TestProcessForwardsCleanMessage(t *testing.T) {
	e := newEnv(t, nil)
	e.source.msgs = []models.Message{msg("<m1>", "bob@corp.test", "Standup", "All fine. Nothing new.")}

	if err := e.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(e.notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(e.notifier.sent))
	}
	if e.summarizer.calls != 1 {
		t.Errorf("summarizer calls = %d, want 1", e.summarizer.calls)
	}
	if !strings.Contains(e.notifier.sent[0], "Short summary.") {
		t.Errorf("notification missing summary:\n%s", e.notifier.sent[0])
	}
	if !e.ledger.set["<m1>"] {
		t.Error("message not recorded in ledger")
	}
	if !e.source.seen["<m1>"] {
		t.Error("message not marked seen at source")
	}
	if len(e.summaryLog.recs) != 1 || e.summaryLog.recs[0].Blocked {
		t.Errorf("summary log wrong: %+v", e.summaryLog.recs)
	}
}

func TestProcessBlocksConfidentialMessage(t *testing.T) {
	e := newEnv(t, nil)
	e.source.msgs = []models.Message{
		msg("<m2>", "hr@corp.test", "Salary review", "This is CONFIDENTIAL. Contact jane@acme.com for details."),
	}

	if err := e.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if e.summarizer.calls != 0 {
		t.Errorf("summarizer invoked %d times for confidential mail", e.summarizer.calls)
	}
	if len(e.notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(e.notifier.sent))
	}
	out := e.notifier.sent[0]
	if !strings.Contains(out, "Protected: no content was sent to any external API") {
		t.Errorf("notification missing protection notice:\n%s", out)
	}
	if strings.Contains(out, "jane@acme.com") {
		t.Errorf("notification leaked raw email address:\n%s", out)
	}
	if len(e.summaryLog.recs) != 1 || !e.summaryLog.recs[0].Blocked || !e.summaryLog.recs[0].Confidential {
		t.Errorf("summary record flags wrong: %+v", e.summaryLog.recs)
	}
}

func TestProcessIdempotent(t *testing.T) {
	e := newEnv(t, nil)
	e.source.msgs = []models.Message{msg("<m3>", "a@b.test", "s", "body.")}

	ctx := context.Background()
	if err := e.pipeline.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	// Simulate restart mid-batch: the source reports the message unseen
	// again, but the ledger already has it.
	e.source.seen = map[string]bool{}
	if err := e.pipeline.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if len(e.notifier.sent) != 1 {
		t.Errorf("delivered %d notifications for one message, want 1", len(e.notifier.sent))
	}
}

func TestDeliveryFailureRetried(t *testing.T) {
	e := newEnv(t, nil)
	e.source.msgs = []models.Message{msg("<m4>", "a@b.test", "s", "body.")}
	e.notifier.err = errors.New("telegram unreachable")

	ctx := context.Background()
	if err := e.pipeline.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if e.ledger.set["<m4>"] {
		t.Error("undelivered message recorded in ledger")
	}
	if e.source.seen["<m4>"] {
		t.Error("undelivered message marked seen")
	}

	// Notifier recovers; the next cycle delivers.
	e.notifier.err = nil
	if err := e.pipeline.RunCycle(ctx); err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if len(e.notifier.sent) != 1 {
		t.Fatalf("sent %d notifications after retry, want 1", len(e.notifier.sent))
	}
	if !e.ledger.set["<m4>"] {
		t.Error("delivered message missing from ledger")
	}
}

func TestMalformedMessageSkipped(t *testing.T) {
	e := newEnv(t, nil)
	broken := msg("<m5>", "a@b.test", "s", "")
	broken.Malformed = true
	e.source.msgs = []models.Message{broken}

	if err := e.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(e.notifier.sent) != 0 {
		t.Errorf("malformed message produced %d notifications", len(e.notifier.sent))
	}
	if !e.ledger.set["<m5>"] {
		t.Error("malformed message not recorded; would retry forever")
	}
}

func TestDomainFilterSkips(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.DomainFilter = "@corp.test" })
	e.source.msgs = []models.Message{
		msg("<m6>", "outsider@elsewhere.test", "s", "body."),
		msg("<m7>", "insider@corp.test", "s", "body."),
	}

	if err := e.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if len(e.notifier.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(e.notifier.sent))
	}
	if !e.ledger.set["<m6>"] {
		t.Error("filtered message not recorded in ledger")
	}
}

func TestPersistenceFailureDoesNotBlockDelivery(t *testing.T) {
	e := newEnv(t, nil)
	e.source.msgs = []models.Message{msg("<m8>", "a@b.test", "s", "body.")}
	e.summaryLog.insertErr = errors.New("disk full")

	if err := e.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(e.notifier.sent) != 1 {
		t.Errorf("sent %d notifications despite log failure, want 1", len(e.notifier.sent))
	}
}

func TestTransportErrorAbortsCycle(t *testing.T) {
	e := newEnv(t, nil)
	e.source.fetchErr = errors.New("connection reset")

	if err := e.pipeline.RunCycle(context.Background()); err == nil {
		t.Fatal("expected cycle error on fetch failure")
	}
	if len(e.notifier.sent) != 0 {
		t.Errorf("sent %d notifications", len(e.notifier.sent))
	}
}

func TestBootstrapRecordsBacklogOnce(t *testing.T) {
	e := newEnv(t, nil)
	e.source.msgs = []models.Message{
		msg("<old1>", "a@b.test", "s", "body."),
		msg("<old2>", "a@b.test", "s", "body."),
	}

	ctx := context.Background()
	if err := e.pipeline.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if len(e.notifier.sent) != 0 {
		t.Errorf("bootstrap delivered %d notifications", len(e.notifier.sent))
	}
	if !e.ledger.set["<old1>"] || !e.ledger.set["<old2>"] {
		t.Error("backlog not recorded in ledger")
	}

	// A later cycle must not re-deliver backlog mail.
	if err := e.pipeline.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(e.notifier.sent) != 0 {
		t.Errorf("backlog delivered after bootstrap: %d", len(e.notifier.sent))
	}

	// Second bootstrap is a no-op: new unseen mail stays unprocessed.
	e.source.msgs = append(e.source.msgs, msg("<new>", "a@b.test", "s", "body."))
	if err := e.pipeline.Bootstrap(ctx); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if e.ledger.set["<new>"] {
		t.Error("second bootstrap swallowed new mail")
	}
}

func TestNotificationTruncatedAtDeliveryBoundary(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.MaxPayload = 100 })
	e.summarizer.out = strings.Repeat("long summary sentence. ", 30)
	e.source.msgs = []models.Message{msg("<m9>", "a@b.test", "s", "body.")}

	if err := e.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := len([]rune(e.notifier.sent[0])); got > 100 {
		t.Errorf("payload length = %d, want <= 100", got)
	}
}
