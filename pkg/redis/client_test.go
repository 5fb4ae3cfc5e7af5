package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/latasoft/confiaticket-checkout/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{
		Host:        "cache",
		Port:        6380,
		DB:          2,
		PoolSize:    7,
		DialTimeout: time.Second,
	})

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

func TestHealthCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, HealthCheck(context.Background(), db))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	assert.Error(t, HealthCheck(context.Background(), db))

	assert.NoError(t, mock.ExpectationsWereMet())
}
