package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Пул соединений и таймауты БД
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	DBQueryTimeout    time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	TxMaxRetries      int           `env:"TX_MAX_RETRIES" envDefault:"3"`

	// Redis; пустой URL отключает кэш таблиц
	RedisURL          string        `env:"REDIS_URL"`
	StandingsCacheTTL time.Duration `env:"STANDINGS_CACHE_TTL" envDefault:"5m"`

	CountersRebuildCron    string        `env:"COUNTERS_REBUILD_CRON" envDefault:"*/10 * * * *"`
	CountersRebuildTimeout time.Duration `env:"COUNTERS_REBUILD_TIMEOUT" envDefault:"2m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Логотипы команд: R2 (presigned) или публичный базовый URL
	R2AccountID       string        `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string        `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string        `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string        `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string        `env:"R2_PUBLIC_BASE_URL"`
	LogoPresignTTL    time.Duration `env:"LOGO_PRESIGN_TTL" envDefault:"15m"`
	LogoBaseURL       string        `env:"LOGO_BASE_URL"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment without touching .env files.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns)
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS (%d), got %d", c.DBMaxOpenConns, c.DBMaxIdleConns)
	}
	if c.DBQueryTimeout <= 0 || c.DBConnectTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT and DB_CONNECT_TIMEOUT must be positive")
	}
	if c.TxMaxRetries < 0 {
		return fmt.Errorf("TX_MAX_RETRIES must not be negative, got %d", c.TxMaxRetries)
	}
	if strings.TrimSpace(c.CountersRebuildCron) == "" {
		return fmt.Errorf("COUNTERS_REBUILD_CRON must not be empty")
	}
	if c.R2AccountID != "" && (c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "") {
		return fmt.Errorf("R2_ACCOUNT_ID is set but R2 credentials or bucket are missing")
	}
	return nil
}

// R2Enabled reports whether logo URLs should come from Cloudflare R2.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != ""
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
