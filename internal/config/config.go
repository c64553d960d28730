package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"momo-checkout/internal/database"
)

type Config struct {
	Port        int
	LogLevel    string
	CORSOrigins []string

	// TracesExporter is "none" or "stdout".
	TracesExporter string

	DB          database.Config
	Paypack     Paypack
	Approval    Approval
	// StoreTimeout bounds settlement and compensation writes, which run
	// detached from the request context.
	StoreTimeout time.Duration
	Reconcile    Reconcile
}

type Paypack struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Environment  string
	Timeout      time.Duration
}

type Approval struct {
	Deadline     time.Duration
	PollInterval time.Duration
	EventsLimit  int
}

type Reconcile struct {
	Interval   time.Duration // zero disables the sweep
	StaleAfter time.Duration
	BatchSize  int
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func Load() (Config, error) {
	var (
		cfg  Config
		errs []error
	)
	duration := func(k, def string) time.Duration {
		d, err := time.ParseDuration(getenv(k, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return d
	}
	integer := func(k, def string) int {
		n, err := strconv.Atoi(getenv(k, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return n
	}

	cfg.Port = integer("PORT", "8080")
	cfg.LogLevel = getenv("LOG_LEVEL", "info")
	cfg.TracesExporter = getenv("OTEL_TRACES_EXPORTER", "none")
	cfg.CORSOrigins = strings.Split(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",")
	cfg.DB = database.Config{
		Host:     getenv("BLUEPRINT_DB_HOST", "localhost"),
		Port:     getenv("BLUEPRINT_DB_PORT", "5432"),
		Database: getenv("BLUEPRINT_DB_DATABASE", "checkout"),
		Username: getenv("BLUEPRINT_DB_USERNAME", "postgres"),
		Password: getenv("BLUEPRINT_DB_PASSWORD", "postgres"),
		Schema:   getenv("BLUEPRINT_DB_SCHEMA", "public"),
	}
	cfg.Paypack = Paypack{
		BaseURL:      getenv("PAYPACK_BASE_URL", "https://payments.paypack.rw/api"),
		ClientID:     os.Getenv("PAYPACK_CLIENT_ID"),
		ClientSecret: os.Getenv("PAYPACK_CLIENT_SECRET"),
		Environment:  getenv("PAYPACK_ENVIRONMENT", "development"),
		Timeout:      duration("PAYPACK_HTTP_TIMEOUT", "10s"),
	}
	cfg.Approval = Approval{
		Deadline:     duration("APPROVAL_DEADLINE", "120s"),
		PollInterval: duration("APPROVAL_POLL_INTERVAL", "5s"),
		EventsLimit:  integer("APPROVAL_EVENTS_LIMIT", "100"),
	}
	cfg.StoreTimeout = duration("STORE_TIMEOUT", "10s")
	cfg.Reconcile = Reconcile{
		Interval:   duration("RECONCILE_INTERVAL", "0s"),
		StaleAfter: duration("RECONCILE_STALE_AFTER", "10m"),
		BatchSize:  integer("RECONCILE_BATCH_SIZE", "100"),
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %v", errs)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Approval.Deadline <= 0:
		return fmt.Errorf("config: APPROVAL_DEADLINE must be positive")
	case c.Approval.PollInterval <= 0:
		return fmt.Errorf("config: APPROVAL_POLL_INTERVAL must be positive")
	case c.Approval.PollInterval > c.Approval.Deadline:
		return fmt.Errorf("config: APPROVAL_POLL_INTERVAL exceeds APPROVAL_DEADLINE")
	case c.Approval.EventsLimit <= 0:
		return fmt.Errorf("config: APPROVAL_EVENTS_LIMIT must be positive")
	case c.Paypack.Environment != "development" && c.Paypack.Environment != "production":
		return fmt.Errorf("config: PAYPACK_ENVIRONMENT must be development or production")
	case c.TracesExporter != "none" && c.TracesExporter != "stdout":
		return fmt.Errorf("config: OTEL_TRACES_EXPORTER must be none or stdout")
	case c.Reconcile.Interval > 0 && c.Reconcile.StaleAfter <= c.Approval.Deadline:
		// a sweep must never touch a batch whose approval wait is still running
		return fmt.Errorf("config: RECONCILE_STALE_AFTER must exceed APPROVAL_DEADLINE")
	}
	return nil
}
