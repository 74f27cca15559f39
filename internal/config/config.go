// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	BackendAppsScript = "appsscript"
	BackendPostgres   = "postgres"
	BackendSheets     = "sheets"
)

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	LogLevel string
	LogJSON  bool

	GeminiAPIKey      string
	ExtractionTimeout time.Duration

	LedgerBackend   string
	LedgerTimeout   time.Duration
	AppsScriptURL   string
	DatabaseURL     string
	SpreadsheetID   string
	ServiceAccount  []byte
	ExpensesSheet   string
	CategoriesSheet string

	CategoryCacheTTL   time.Duration
	SessionIdleTimeout time.Duration

	WriteQueueSize   int
	WriteMaxAttempts int

	AMQPURL             string
	AMQPExchange        string
	AMQPDeadLetterQueue string

	TelegramBotToken string

	Location       *time.Location
	CurrencySymbol string

	OTelExporter string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                envOr("PORT", "5000"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		LogJSON:             os.Getenv("LOG_FORMAT") == "json",
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		LedgerBackend:       strings.ToLower(envOr("LEDGER_BACKEND", BackendAppsScript)),
		AppsScriptURL:       strings.TrimSpace(os.Getenv("APPS_SCRIPT_URL")),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SpreadsheetID:       strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		ExpensesSheet:       envOr("EXPENSES_SHEET_NAME", "Expenses"),
		CategoriesSheet:     envOr("CATEGORIES_SHEET_NAME", "Categories"),
		AMQPURL:             os.Getenv("AMQP_URL"),
		AMQPExchange:        envOr("AMQP_EXCHANGE", "ledger"),
		AMQPDeadLetterQueue: envOr("AMQP_DEAD_LETTER_QUEUE", "ledger.dead_letter"),
		TelegramBotToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		CurrencySymbol:      envOr("CURRENCY_SYMBOL", "₹"),
		OTelExporter:        strings.ToLower(envOr("OTEL_EXPORTER", ExporterNone)),
	}

	cfg.ExtractionTimeout = durationOr("EXTRACTION_TIMEOUT", 15*time.Second, false)
	cfg.LedgerTimeout = durationOr("LEDGER_TIMEOUT", 10*time.Second, false)
	cfg.CategoryCacheTTL = durationOr("CATEGORY_CACHE_TTL", 30*time.Second, true)
	cfg.SessionIdleTimeout = durationOr("SESSION_IDLE_TIMEOUT", 0, true)
	cfg.WriteQueueSize = intOr("WRITE_QUEUE_SIZE", 100)
	cfg.WriteMaxAttempts = intOr("WRITE_MAX_ATTEMPTS", 3)

	cfg.Location = time.UTC
	tz := envOr("TIMEZONE", "Asia/Kolkata")
	if loc, err := time.LoadLocation(tz); err == nil {
		cfg.Location = loc
	}

	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		cfg.ServiceAccount = []byte(inline)
	} else if path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read service account file: %w", err)
		}
		cfg.ServiceAccount = data
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.GeminiAPIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}

	switch c.LedgerBackend {
	case BackendAppsScript:
		if c.AppsScriptURL == "" {
			errs = append(errs, "APPS_SCRIPT_URL is required for the appsscript backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
	case BackendSheets:
		if c.SpreadsheetID == "" {
			errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for the sheets backend")
		}
		if len(c.ServiceAccount) == 0 {
			errs = append(errs, "GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE is required for the sheets backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown LEDGER_BACKEND %q", c.LedgerBackend))
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC:
	default:
		errs = append(errs, fmt.Sprintf("unknown OTEL_EXPORTER %q", c.OTelExporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// durationOr parses a duration, falling back on invalid or out-of-range values.
func durationOr(key string, fallback time.Duration, allowZero bool) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return fallback
	}
	return d
}

func intOr(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
