package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momo-checkout/internal/logging"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", Database: "checkout", Username: "u", Password: "p", Schema: "public"}
	assert.Equal(t, "postgres://u:p@db:5432/checkout?sslmode=disable&search_path=public", cfg.DSN())
}

func TestHealth_Down(t *testing.T) {
	db, err := NewPostgres("postgres://u:p@127.0.0.1:1/checkout?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	svc := Wrap(db, "checkout", logging.Discard())
	t.Cleanup(func() { _ = svc.Close() })

	stats := svc.Health()

	assert.Equal(t, "down", stats["status"])
	assert.NotEmpty(t, stats["error"])
	assert.NotContains(t, stats, "open_connections")
}
