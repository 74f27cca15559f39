// Package main is the entry point for the chat-driven expense ledger.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gitlab.com/yelinaung/ledger-chat/internal/bot"
	"gitlab.com/yelinaung/ledger-chat/internal/categories"
	"gitlab.com/yelinaung/ledger-chat/internal/chat"
	"gitlab.com/yelinaung/ledger-chat/internal/config"
	"gitlab.com/yelinaung/ledger-chat/internal/database"
	"gitlab.com/yelinaung/ledger-chat/internal/gemini"
	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/ledger/sheets"
	"gitlab.com/yelinaung/ledger-chat/internal/logger"
	"gitlab.com/yelinaung/ledger-chat/internal/repository"
	"gitlab.com/yelinaung/ledger-chat/internal/session"
	"gitlab.com/yelinaung/ledger-chat/internal/telemetry"
	"gitlab.com/yelinaung/ledger-chat/internal/webhook"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("ledger-chat %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Configure(cfg.LogLevel, cfg.LogJSON)
	logger.InitHashSalt()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTelExporter, "ledger-chat", version)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}

	store, closeStore, err := openLedger(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("backend", cfg.LedgerBackend).Msg("Failed to open ledger")
	}
	defer closeStore()
	logger.Log.Info().Str("backend", cfg.LedgerBackend).Msg("Ledger initialized successfully")

	extractor, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	extractor.SetTimeout(cfg.ExtractionTimeout)

	sink, closeSink := openDeadLetterSink(cfg)
	defer closeSink()

	writer := ledger.NewWriter(store, sink, ledger.WriterConfig{
		QueueSize:      cfg.WriteQueueSize,
		MaxAttempts:    cfg.WriteMaxAttempts,
		AttemptTimeout: cfg.LedgerTimeout,
	})
	writer.Start()

	router := chat.NewRouter(chat.Deps{
		Extractor:   extractor,
		Interpreter: extractor,
		Categories:  categories.NewRegistry(store, cfg.CategoryCacheTTL),
		Ledger:      store,
		Writer:      writer,
		Sessions:    session.NewStore(cfg.SessionIdleTimeout),
		Location:    cfg.Location,
		Currency:    cfg.CurrencySymbol,
	})

	g, gctx := errgroup.WithContext(ctx)

	server := webhook.New(net.JoinHostPort("", cfg.Port), router)
	g.Go(func() error {
		return server.Run(gctx)
	})

	if cfg.TelegramBotToken != "" {
		telegramBot, err := bot.New(cfg.TelegramBotToken, router, store, cfg.Location, cfg.CurrencySymbol)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to create bot")
		}
		g.Go(func() error {
			telegramBot.Start(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Log.Error().Err(err).Msg("Server stopped with error")
	}
	logger.Log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := writer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Int("pending", writer.Pending()).Msg("Ledger writes did not drain")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to flush telemetry")
	}
}

// openLedger builds the configured ledger backend.
func openLedger(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	noop := func() {}

	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := database.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repository.NewLedgerStore(pool), pool.Close, nil

	case config.BackendSheets:
		client, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			ExpensesSheet:   cfg.ExpensesSheet,
			CategoriesSheet: cfg.CategoriesSheet,
			Timeout:         cfg.LedgerTimeout,
		}, sheets.CredentialOptions(cfg.ServiceAccount)...)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	default:
		return ledger.NewAppsScriptClient(cfg.AppsScriptURL, cfg.LedgerTimeout), noop, nil
	}
}

// openDeadLetterSink publishes to AMQP when configured and falls back to the log.
func openDeadLetterSink(cfg *config.Config) (ledger.DeadLetterSink, func()) {
	if cfg.AMQPURL == "" {
		return ledger.LogDeadLetter{}, func() {}
	}

	sink, err := ledger.NewAMQPDeadLetter(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPDeadLetterQueue)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("AMQP unavailable, dead letters will only be logged")
		return ledger.LogDeadLetter{}, func() {}
	}
	return sink, func() {
		if err := sink.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to close AMQP connection")
		}
	}
}
