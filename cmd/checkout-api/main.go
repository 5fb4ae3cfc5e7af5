package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/di"
	"github.com/latasoft/confiaticket-checkout/internal/events"
	"github.com/latasoft/confiaticket-checkout/internal/service"
	"github.com/latasoft/confiaticket-checkout/pkg/config"
	"github.com/latasoft/confiaticket-checkout/pkg/database"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	pkgredis "github.com/latasoft/confiaticket-checkout/pkg/redis"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("invalid config: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:       logLevel(cfg),
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	})
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	logger.SetGlobal(log)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		log.Warn("Telemetry disabled", zap.Error(err))
	}

	containerCfg := &di.ContainerConfig{Config: cfg, Logger: log}

	if cfg.Database.Enabled {
		db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			log.Fatal("Failed to connect to postgres", zap.Error(err))
		}
		containerCfg.DB = db
		log.Info("Connected to postgres", zap.String("host", cfg.Database.Host))
	}

	if cfg.Redis.Enabled {
		rdb, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			containerCfg.Redis = rdb
		}
	}

	if cfg.Kafka.Enabled {
		kafka, err := events.NewKafkaClient(cfg.Kafka)
		if err != nil {
			log.Warn("Kafka unavailable, transitions will not be published", zap.Error(err))
		} else {
			containerCfg.Kafka = kafka
		}
	}

	container, err := di.NewContainer(ctx, containerCfg)
	if err != nil {
		log.Fatal("Failed to build container", zap.Error(err))
	}
	defer container.Close()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      container.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go runSweeper(sweepCtx, container.Sessions, cfg.Checkout.SweepInterval, sweeperDone)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Checkout API listening", zap.String("addr", server.Addr), zap.String("environment", cfg.App.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("Server error", zap.Error(err))
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	stopSweeper()
	<-sweeperDone

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}
	log.Info("Checkout API stopped")
}

// runSweeper drops idle purchase sessions every interval until ctx is done
func runSweeper(ctx context.Context, sessions *service.SessionManager, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep(ctx)
		}
	}
}

// loadConfig reads CONFIG_FILE when set, else .env and the environment
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadWithPath(path)
	}
	return config.Load()
}

func logLevel(cfg *config.Config) string {
	if cfg.App.Debug {
		return "debug"
	}
	return "info"
}
