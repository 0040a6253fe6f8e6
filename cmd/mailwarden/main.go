package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/varezhka/mailwarden/internal/config"
	"github.com/varezhka/mailwarden/internal/database"
	"github.com/varezhka/mailwarden/internal/formatter"
	"github.com/varezhka/mailwarden/internal/mailbox"
	"github.com/varezhka/mailwarden/internal/notify"
	"github.com/varezhka/mailwarden/internal/pipeline"
	"github.com/varezhka/mailwarden/internal/redact"
	"github.com/varezhka/mailwarden/internal/server"
	"github.com/varezhka/mailwarden/internal/summarize"
	"github.com/varezhka/mailwarden/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mailwarden")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	// Create components
	source := mailbox.NewClient(mailbox.Config{
		Server:      cfg.IMAPHost,
		User:        cfg.IMAPUser,
		Password:    cfg.IMAPPass,
		Mailbox:     cfg.IMAPMailbox,
		DialTimeout: cfg.IMAPDialTimeout,
	}, logger)
	defer source.Close()

	notifier, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Error("failed to create telegram notifier", "error", err)
		os.Exit(1)
	}

	var summaryClient summarize.Client
	if cfg.SummarizerEnabled() {
		summaryClient = summarize.NewGemini("", cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout)
		logger.Info("external summarizer enabled", "model", cfg.GeminiModel)
	} else {
		summaryClient = summarize.Noop{}
		logger.Info("no summarizer API key, using local fallback")
	}
	summarizer := summarize.NewService(summaryClient, logger)

	router := pipeline.NewRouter(summarizer, cfg.ConfidentialityCheck, cfg.SummaryMaxTokens, logger)

	pipe := pipeline.New(pipeline.Deps{
		Source:       source,
		Notifier:     notifier,
		Redactor:     redact.New(cfg.ConfidentialKeywords),
		Router:       router,
		Formatter:    formatter.New(),
		Ledger:       db,
		SummaryLog:   db,
		State:        db,
		MaxPayload:   cfg.NotifyMaxLen,
		DomainFilter: cfg.SenderDomainFilter,
		Logger:       logger,
	})

	if err := pipe.Bootstrap(ctx); err != nil {
		logger.Error("failed to bootstrap pipeline", "error", err)
		os.Exit(1)
	}

	controller := worker.NewController(pipe, cfg.PollInterval, logger)
	controller.Start()

	// HTTP control API
	api := server.New(controller, db, logger)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Handler(),
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", "signal", sig)
	logger.Info("shutting down...")

	controller.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	logger.Info("mailwarden stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
