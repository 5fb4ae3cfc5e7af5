package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
)

const cachePrefix = "checkout:"

// CachedBackend caches catalog reads in Redis. Occupancy, holds and payments
// always reach the backend.
type CachedBackend struct {
	Backend
	rdb goredis.Cmdable
	ttl time.Duration
	log *logger.Logger
}

// NewCachedBackend decorates upstream with a read-through cache
func NewCachedBackend(upstream Backend, rdb goredis.Cmdable, ttl time.Duration, log *logger.Logger) *CachedBackend {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedBackend{Backend: upstream, rdb: rdb, ttl: ttl, log: log}
}

// EventKey is the cache key of an event descriptor
func EventKey(eventID int) string {
	return fmt.Sprintf("%sevent:%d", cachePrefix, eventID)
}

// SectionsKey is the cache key of an event's sections
func SectionsKey(eventID int) string {
	return fmt.Sprintf("%sevent:%d:sections", cachePrefix, eventID)
}

// ResaleTicketsKey is the cache key of an event's resale listing
func ResaleTicketsKey(eventID int) string {
	return fmt.Sprintf("%sevent:%d:resale", cachePrefix, eventID)
}

// SystemConfigKey is the cache key of the platform settings
const SystemConfigKey = cachePrefix + "config:system"

func (c *CachedBackend) GetEvent(ctx context.Context, eventID int) (*domain.Event, error) {
	return readThrough(ctx, c, EventKey(eventID), func() (*domain.Event, error) {
		return c.Backend.GetEvent(ctx, eventID)
	})
}

func (c *CachedBackend) ListSections(ctx context.Context, eventID int) ([]domain.Section, error) {
	return readThrough(ctx, c, SectionsKey(eventID), func() ([]domain.Section, error) {
		return c.Backend.ListSections(ctx, eventID)
	})
}

func (c *CachedBackend) ListResaleTickets(ctx context.Context, eventID int) ([]domain.ResaleTicket, error) {
	return readThrough(ctx, c, ResaleTicketsKey(eventID), func() ([]domain.ResaleTicket, error) {
		return c.Backend.ListResaleTickets(ctx, eventID)
	})
}

func (c *CachedBackend) SystemConfig(ctx context.Context) (*domain.SystemConfig, error) {
	return readThrough(ctx, c, SystemConfigKey, func() (*domain.SystemConfig, error) {
		return c.Backend.SystemConfig(ctx)
	})
}

var _ CatalogInvalidator = (*CachedBackend)(nil)

// Invalidate drops the cached catalog of an event
func (c *CachedBackend) Invalidate(ctx context.Context, eventID int) error {
	return c.rdb.Del(ctx, EventKey(eventID), SectionsKey(eventID), ResaleTicketsKey(eventID)).Err()
}

// readThrough serves key from Redis or loads and stores it. Redis errors fall
// back to the loader.
func readThrough[T any](ctx context.Context, c *CachedBackend, key string, load func() (T, error)) (T, error) {
	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal([]byte(cached), &v); jsonErr == nil {
			return v, nil
		}
		c.log.Warn("Discarding unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, goredis.Nil):
		c.log.WithContext(ctx).Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return v, nil
	}
	if err := c.rdb.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		c.log.WithContext(ctx).Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
