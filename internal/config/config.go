package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// IMAP
	IMAPHost        string        `env:"IMAP_HOST" envDefault:"imap.gmail.com:993"`
	IMAPUser        string        `env:"IMAP_USER,required"`
	IMAPPass        string        `env:"IMAP_PASS,required"`
	IMAPMailbox     string        `env:"IMAP_MAILBOX" envDefault:"INBOX"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`

	// Only process mail whose sender address ends with this suffix.
	// Empty means all senders.
	SenderDomainFilter string `env:"SENDER_DOMAIN_FILTER"`

	// Telegram
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID,required"`
	NotifyMaxLen   int    `env:"NOTIFY_MAX_LENGTH" envDefault:"1500"`

	// Summarizer (optional; local fallback is used when no key is set)
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GeminiTimeout    time.Duration `env:"GEMINI_TIMEOUT" envDefault:"30s"`
	SummaryMaxTokens int           `env:"SUMMARY_MAX_TOKENS" envDefault:"300"`

	// Confidentiality gate
	ConfidentialityCheck bool   `env:"CONFIDENTIALITY_CHECK" envDefault:"true"`
	ConfidentialKeywords string `env:"CONFIDENTIAL_KEYWORDS" envDefault:"confidential,internal,proprietary,classified,secret,password,api key,token,private,restricted"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/mailwarden.db"`

	// HTTP control API
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// SummarizerEnabled returns true if the external summarizer is configured.
func (c *Config) SummarizerEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.NotifyMaxLen < 100 {
		return nil, fmt.Errorf("NOTIFY_MAX_LENGTH must be at least 100, got %d", cfg.NotifyMaxLen)
	}

	return cfg, nil
}
