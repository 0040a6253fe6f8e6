package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/varezhka/mailwarden/pkg/models"
)

// ErrDecode marks a message whose body could not be parsed. Such messages are
// skipped and never retried.
var ErrDecode = errors.New("failed to decode message")

// Config for the IMAP source.
type Config struct {
	Server      string // host:port
	User        string
	Password    string
	Mailbox     string // defaults to INBOX
	DialTimeout time.Duration
}

// Client is a polling IMAP source for a single account. It reconnects lazily:
// a dropped connection is noticed on the next fetch and re-established then.
type Client struct {
	config Config
	html   *htmlExtractor
	logger *slog.Logger

	mu        sync.Mutex
	client    *client.Client
	connected bool
}

// NewClient creates an IMAP source.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &Client{
		config: cfg,
		html:   newHTMLExtractor(),
		logger: logger.With("component", "mailbox", "user", cfg.User),
	}
}

// FetchUnseen returns all unseen messages in mailbox order.
func (c *Client) FetchUnseen(ctx context.Context) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	ch := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqSet, items, ch)
	}()

	var out []models.Message
	for raw := range ch {
		out = append(out, c.parseMessage(raw, section))
	}
	if err := <-done; err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("fetch unseen: %w", err)
	}

	// Keep arrival order regardless of how the server interleaved the fetch.
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

// MarkSeen adds the \Seen flag so the message is not returned again.
func (c *Client) MarkSeen(ctx context.Context, msg models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(msg.UID)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := c.client.UidStore(seqSet, item, flags, nil); err != nil {
		c.dropConnection()
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Close logs out. The client must not be used afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConnection()
}

// ensureConnected dials, logs in and selects the mailbox if needed.
// Callers must hold c.mu.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.connected && c.client != nil {
		return nil
	}

	c.logger.Info("connecting to IMAP server", "server", c.config.Server)

	dialer := &net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", c.config.Server, nil)
	if err != nil {
		return fmt.Errorf("connect to IMAP server: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create IMAP client: %w", err)
	}

	if err := imapClient.Login(c.config.User, c.config.Password); err != nil {
		imapClient.Logout()
		return fmt.Errorf("IMAP login: %w", err)
	}

	if _, err := imapClient.Select(c.config.Mailbox, false); err != nil {
		imapClient.Logout()
		return fmt.Errorf("select %s: %w", c.config.Mailbox, err)
	}

	c.client = imapClient
	c.connected = true
	c.logger.Info("connected to IMAP server")
	return nil
}

// dropConnection forgets the connection so the next call redials.
// Callers must hold c.mu.
func (c *Client) dropConnection() {
	c.connected = false
	if c.client != nil {
		c.client.Logout()
		c.client = nil
	}
}

// parseMessage converts a fetched IMAP message. Decode failures do not abort
// the fetch; the message comes back flagged Malformed so the pipeline can
// skip it permanently.
func (c *Client) parseMessage(raw *imap.Message, section *imap.BodySectionName) models.Message {
	msg := models.Message{
		UID: raw.Uid,
		ID:  fmt.Sprintf("uid:%d", raw.Uid),
	}

	if raw.Envelope != nil {
		msg.Subject = raw.Envelope.Subject
		msg.ReceivedAt = raw.Envelope.Date
		if raw.Envelope.MessageId != "" {
			msg.ID = raw.Envelope.MessageId
		}
		if len(raw.Envelope.From) > 0 {
			from := raw.Envelope.From[0]
			if from.PersonalName != "" {
				msg.Sender = fmt.Sprintf("%s <%s>", from.PersonalName, from.Address())
			} else {
				msg.Sender = from.Address()
			}
		}
	}

	body, err := c.extractBody(raw.GetBody(section))
	if err != nil {
		c.logger.Warn("failed to decode message body", "uid", raw.Uid, "error", err)
		msg.Malformed = true
		return msg
	}
	msg.Body = body
	return msg
}

// extractBody returns the best-effort plain-text body, preferring text/plain
// parts and converting text/html when that is all there is.
func (c *Client) extractBody(r io.Reader) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: missing body section", ErrDecode)
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var text, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecode, err)
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := header.ContentType()
		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(ct, "text/plain") && text == "":
			text = string(content)
		case strings.HasPrefix(ct, "text/html") && html == "":
			html = string(content)
		}
	}

	if text != "" {
		return text, nil
	}
	if html != "" {
		converted, err := c.html.Extract(html)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return converted, nil
	}
	return "", nil
}
