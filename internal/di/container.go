package di

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/client"
	"github.com/latasoft/confiaticket-checkout/internal/events"
	"github.com/latasoft/confiaticket-checkout/internal/handler"
	"github.com/latasoft/confiaticket-checkout/internal/service"
	"github.com/latasoft/confiaticket-checkout/pkg/config"
	"github.com/latasoft/confiaticket-checkout/pkg/database"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/middleware"
	pkgredis "github.com/latasoft/confiaticket-checkout/pkg/redis"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

// Container holds all dependencies for the checkout service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *goredis.Client
	Kafka *kgo.Client

	// Adapters
	Backend   client.Backend
	Journal   checkout.Journal
	Publisher checkout.Publisher
	Metrics   *telemetry.CheckoutMetrics

	// Services
	Sessions *service.SessionManager

	// Handlers
	HealthHandler   *handler.HealthHandler
	CheckoutHandler *handler.CheckoutHandler
	Router          *gin.Engine
}

// ContainerConfig contains configuration for building the container.
// DB, Redis and Kafka are optional; nil disables the component they back.
type ContainerConfig struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *database.PostgresDB
	Redis  *goredis.Client
	Kafka  *kgo.Client
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *ContainerConfig) (*Container, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	c := &Container{
		DB:    cfg.DB,
		Redis: cfg.Redis,
		Kafka: cfg.Kafka,
	}

	metrics, err := telemetry.NewCheckoutMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register checkout metrics: %w", err)
	}
	c.Metrics = metrics

	// Initialize adapters
	var backend client.Backend = client.NewHTTPBackend(client.Config{
		BaseURL: cfg.Config.Backend.BaseURL,
		Timeout: cfg.Config.Backend.Timeout,
		Metrics: metrics,
	})
	if c.Redis != nil {
		backend = client.NewCachedBackend(backend, c.Redis, cfg.Config.Checkout.CatalogCacheTTL, log)
	}
	c.Backend = backend

	if c.DB != nil {
		journal := checkout.NewPostgresJournal(c.DB.Pool())
		if err := journal.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		c.Journal = journal
	} else {
		c.Journal = checkout.NewMemoryJournal()
	}

	if c.Kafka != nil {
		c.Publisher = events.NewKafkaPublisher(c.Kafka, cfg.Config.Kafka.TransitionTopic)
	} else {
		c.Publisher = events.NoopPublisher{}
	}

	// Initialize services
	checkoutCfg := cfg.Config.Checkout
	if cfg.Config.IsProduction() {
		checkoutCfg.TestPaymentEnabled = false
	}
	c.Sessions = service.NewSessionManager(service.ManagerOptions{
		Backend:   c.Backend,
		Journal:   c.Journal,
		Publisher: c.Publisher,
		Metrics:   c.Metrics,
		Logger:    log,
		Checkout:  checkoutCfg,
	})

	// Initialize handlers
	checks := map[string]handler.HealthChecker{}
	if c.DB != nil {
		checks["postgres"] = c.DB
	}
	if c.Redis != nil {
		rdb := c.Redis
		checks["redis"] = handler.HealthCheckFunc(func(ctx context.Context) error {
			return pkgredis.HealthCheck(ctx, rdb)
		})
	}
	c.HealthHandler = handler.NewHealthHandler(cfg.Config.App.Version, checks)
	c.CheckoutHandler = handler.NewCheckoutHandler(c.Sessions, log)

	c.Router = handler.NewRouter(handler.RouterConfig{
		Checkout: c.CheckoutHandler,
		Health:   c.HealthHandler,
		JWT: &middleware.JWTConfig{
			Secret:   cfg.Config.JWT.Secret,
			Issuer:   cfg.Config.JWT.Issuer,
			Optional: true,
		},
		CORSOrigins: cfg.Config.Server.CORSOrigins,
		Logger:      log,
		Debug:       cfg.Config.App.Debug,
	})

	return c, nil
}

// Close releases the infrastructure held by the container
func (c *Container) Close() {
	if c.Kafka != nil {
		c.Kafka.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
