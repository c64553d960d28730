package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schemaSQL string

// Service owns the connection pool shared by the repositories.
type Service interface {
	// Health reports "status" ("up" or "down") plus pool counters.
	Health() map[string]string
	DB() *sql.DB
	Close() error
}

type service struct {
	db   *sql.DB
	name string
	log  *slog.Logger
}

type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Schema,
	)
}

// NewPostgres opens a pgx-backed pool for dsn. The pool connects lazily.
func NewPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func New(cfg Config, log *slog.Logger) (Service, error) {
	db, err := NewPostgres(cfg.DSN())
	if err != nil {
		return nil, err
	}
	return Wrap(db, cfg.Database, log), nil
}

// Wrap exposes an already open pool as a Service.
func Wrap(db *sql.DB, name string, log *slog.Logger) Service {
	return &service{db: db, name: name, log: log}
}

func (s *service) DB() *sql.DB { return s.db }

// ApplySchema creates the orders and payments tables when they are missing.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// Health pings the database and reports pool usage for /health.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.log.Error("health check failed", "database", s.name, "err", err)
		return map[string]string{"status": "down", "error": err.Error()}
	}

	st := s.db.Stats()
	return map[string]string{
		"status":           "up",
		"open_connections": strconv.Itoa(st.OpenConnections),
		"in_use":           strconv.Itoa(st.InUse),
		"wait_count":       strconv.FormatInt(st.WaitCount, 10),
	}
}

func (s *service) Close() error {
	s.log.Info("disconnected from database", "database", s.name)
	return s.db.Close()
}
