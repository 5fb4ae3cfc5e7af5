package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latasoft/confiaticket-checkout/pkg/config"
)

// integrationConfig reads DB_* overrides so the suite can target a throwaway database
func integrationConfig() *PostgresConfig {
	cfg := DefaultPostgresConfig()
	overrides := map[string]*string{
		"DB_HOST":     &cfg.Host,
		"DB_USER":     &cfg.User,
		"DB_PASSWORD": &cfg.Password,
		"DB_NAME":     &cfg.Database,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		cfg.Port = port
	}
	return cfg
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	assert.Equal(t, "confiaticket_checkout", cfg.Database)
	assert.Equal(t, 5432, cfg.Port)
	assert.EqualValues(t, 25, cfg.MaxConns)
	assert.EqualValues(t, 5, cfg.MinConns)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestFromConfig(t *testing.T) {
	t.Run("overrides pool sizes", func(t *testing.T) {
		pc := FromConfig(config.DatabaseConfig{
			Host:     "db.internal",
			Port:     6543,
			User:     "checkout",
			Password: "pw",
			DBName:   "journal",
			SSLMode:  "require",
			MaxConns: 8,
		})

		assert.Equal(t, "db.internal", pc.Host)
		assert.Equal(t, 6543, pc.Port)
		assert.Equal(t, "journal", pc.Database)
		assert.EqualValues(t, 8, pc.MaxConns)
		assert.EqualValues(t, 5, pc.MinConns, "unset min conns keeps the default")
	})

	t.Run("zero durations keep defaults", func(t *testing.T) {
		pc := FromConfig(config.DatabaseConfig{Host: "h", Port: 1})

		assert.Equal(t, time.Hour, pc.MaxConnLifetime)
		assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	})
}

func TestPostgresConfigDSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "pg",
		Port:     5433,
		User:     "checkout",
		Password: "secret",
		Database: "journal",
		SSLMode:  "verify-full",
	}

	assert.Equal(t,
		"host=pg port=5433 user=checkout password=secret dbname=journal sslmode=verify-full",
		cfg.DSN())
}

func TestNewPostgresUnreachable(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.Host = "unreachable.invalid"
	cfg.Port = 1
	cfg.MaxConns = 1
	cfg.MinConns = 0
	cfg.MaxRetries = 1
	cfg.RetryInterval = 50 * time.Millisecond
	cfg.ConnectTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewPostgres(ctx, cfg)
	assert.Nil(t, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestPostgresIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("set INTEGRATION_TEST=true to run against a live postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewPostgres(ctx, integrationConfig())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.HealthCheck(ctx))

	tx, err := db.Pool().Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, "CREATE TEMP TABLE journal_steps (step TEXT NOT NULL) ON COMMIT DROP")
	require.NoError(t, err)
	_, err = tx.Exec(ctx, "INSERT INTO journal_steps (step) VALUES ($1), ($2)", "select", "confirm")
	require.NoError(t, err)

	var n int
	require.NoError(t, tx.QueryRow(ctx, "SELECT count(*) FROM journal_steps").Scan(&n))
	assert.Equal(t, 2, n)
	require.NoError(t, tx.Commit(ctx))
}
