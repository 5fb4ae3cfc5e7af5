package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:      AppConfig{Name: "test", Environment: "development"},
		Server:   ServerConfig{Port: 8090},
		Backend:  BackendConfig{BaseURL: "http://backend"},
		Checkout: CheckoutConfig{MaxQuantity: 10, DefaultFeeBps: 1000},
		JWT:      JWTConfig{Secret: "secret"},
	}
}

func TestLoad_WithDefaults(t *testing.T) {
	for _, v := range []string{
		"APP_NAME", "APP_ENVIRONMENT", "SERVER_PORT", "BACKEND_BASE_URL",
		"CHECKOUT_MAX_QUANTITY", "CHECKOUT_DEFAULT_FEE_BPS", "CHECKOUT_TEST_PAYMENT_ENABLED",
		"KAFKA_BROKERS", "JWT_SECRET",
	} {
		os.Unsetenv(v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "confiaticket-checkout" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "confiaticket-checkout")
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8090)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, 10*time.Second)
	}
	if cfg.Checkout.MaxQuantity != 10 {
		t.Errorf("Checkout.MaxQuantity = %d, want %d", cfg.Checkout.MaxQuantity, 10)
	}
	if !cfg.Checkout.TestPaymentEnabled {
		t.Error("Checkout.TestPaymentEnabled = false, want true in development")
	}
	if cfg.Checkout.Currency != "CLP" {
		t.Errorf("Checkout.Currency = %q, want %q", cfg.Checkout.Currency, "CLP")
	}
	if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
		t.Errorf("Kafka.Brokers = %v, want [localhost:9092]", cfg.Kafka.Brokers)
	}
}

func TestLoad_WithEnvOverride(t *testing.T) {
	t.Setenv("APP_NAME", "test-app")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BACKEND_BASE_URL", "https://api.confiaticket.cl/")
	t.Setenv("CHECKOUT_MAX_QUANTITY", "4")
	t.Setenv("CHECKOUT_DEFAULT_FEE_BPS", "1250")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.App.Name != "test-app" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-app")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Backend.BaseURL != "https://api.confiaticket.cl" {
		t.Errorf("Backend.BaseURL = %q, want trailing slash trimmed", cfg.Backend.BaseURL)
	}
	if cfg.Checkout.MaxQuantity != 4 {
		t.Errorf("Checkout.MaxQuantity = %d, want %d", cfg.Checkout.MaxQuantity, 4)
	}
	if cfg.Checkout.DefaultFeeBps != 1250 {
		t.Errorf("Checkout.DefaultFeeBps = %d, want %d", cfg.Checkout.DefaultFeeBps, 1250)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v, want [k1:9092 k2:9092]", cfg.Kafka.Brokers)
	}
}

func TestLoad_TestPaymentDisabledInProduction(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("CHECKOUT_TEST_PAYMENT_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Checkout.TestPaymentEnabled {
		t.Error("Checkout.TestPaymentEnabled = true, want false in production")
	}
}

func TestLoadWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.env")
	content := "APP_NAME=from-file\nCHECKOUT_DEFAULT_FEE_BPS=800\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := LoadWithPath(path)
	if err != nil {
		t.Fatalf("LoadWithPath() failed: %v", err)
	}

	if cfg.App.Name != "from-file" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "from-file")
	}
	if cfg.Checkout.DefaultFeeBps != 800 {
		t.Errorf("Checkout.DefaultFeeBps = %d, want %d", cfg.Checkout.DefaultFeeBps, 800)
	}
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	if _, err := LoadWithPath(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("LoadWithPath() error = nil, want error for missing file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expected {
		t.Errorf("DSN() = %q, want %q", dsn, expected)
	}
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "redis.example.com", Port: 6380}

	expected := "redis.example.com:6380"
	if addr := cfg.Addr(); addr != expected {
		t.Errorf("Addr() = %q, want %q", addr, expected)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = -1 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "missing backend url", mutate: func(c *Config) { c.Backend.BaseURL = "" }, wantErr: true},
		{name: "zero max quantity", mutate: func(c *Config) { c.Checkout.MaxQuantity = 0 }, wantErr: true},
		{name: "negative fee", mutate: func(c *Config) { c.Checkout.DefaultFeeBps = -1 }, wantErr: true},
		{name: "fee above 100 percent", mutate: func(c *Config) { c.Checkout.DefaultFeeBps = 10001 }, wantErr: true},
		{
			name:    "database enabled without name",
			mutate:  func(c *Config) { c.Database.Enabled = true },
			wantErr: true,
		},
		{
			name:    "kafka enabled without brokers",
			mutate:  func(c *Config) { c.Kafka.Enabled = true },
			wantErr: true,
		},
		{name: "missing JWT secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: true},
		{
			name: "default JWT secret in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.Secret = defaultJWTSecret
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}

	cfg.App.Environment = "development"
	if cfg.IsProduction() {
		t.Error("IsProduction() = true, want false")
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "development"}}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}

	cfg.App.Environment = "production"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
}
