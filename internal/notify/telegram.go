package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
)

// Telegram delivers notification text to a single chat. Formatting is plain
// text; the pipeline already enforces the payload cap.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// NewTelegram creates the notifier. The token is validated against the Bot
// API, so a bad credential fails at startup rather than on first delivery.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Telegram, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		logger: logger.With("component", "notifier"),
	}, nil
}

// Send delivers a text payload and returns the Telegram message id.
func (t *Telegram) Send(ctx context.Context, text string) (string, error) {
	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		return "", fmt.Errorf("send telegram message: %w", err)
	}
	t.logger.Debug("message delivered", "telegram_msg_id", msg.ID)
	return strconv.Itoa(msg.ID), nil
}
