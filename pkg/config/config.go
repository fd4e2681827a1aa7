package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	StoreBackend string // sqlite, postgres, none
	SQLite       SQLiteConfig
	Database     DatabaseConfig

	// Redis
	Redis RedisConfig

	// Engine inputs
	Engine EngineConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// SQLiteConfig holds the local run store settings
type SQLiteConfig struct {
	Path string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// 예측 점수 테이블 (analytics.forecast_scores)
	ForecastTable string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	Enabled   bool
	KeyPrefix string
	PoolTTL   time.Duration
}

// EngineConfig points at the engine's default inputs
type EngineConfig struct {
	StrategyPath string // YAML/TOML EngineConfig
	ForecastPath string // forecast CSV
	BarsPath     string // bars CSV
	Workers      int
}

// SchedulerConfig holds cron settings
type SchedulerConfig struct {
	Enabled         bool
	PoolRefreshCron string
	SignalRunCron   string // 빈 값이면 등록 안 함
	Timezone        string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		StoreBackend: getEnv("STORE_BACKEND", "sqlite"),
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "data/signals.db"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			ForecastTable:   getEnv("FORECAST_TABLE", "analytics.forecast_scores"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Enabled:   getEnvAsBool("REDIS_ENABLED", false),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "aegis:signal"),
			PoolTTL:   getEnvAsDuration("REDIS_POOL_TTL", "72h"),
		},

		Engine: EngineConfig{
			StrategyPath: getEnv("STRATEGY_CONFIG", "config/engine.yaml"),
			ForecastPath: getEnv("FORECAST_PATH", "data/pred.csv"),
			BarsPath:     getEnv("BARS_PATH", "data/bars.csv"),
			Workers:      getEnvAsInt("ENGINE_WORKERS", 0),
		},

		Scheduler: SchedulerConfig{
			Enabled:         getEnvAsBool("SCHEDULER_ENABLED", false),
			PoolRefreshCron: getEnv("POOL_REFRESH_CRON", "0 30 8 * * 1-5"),
			SignalRunCron:   getEnv("SIGNAL_RUN_CRON", "0 10 16 * * 1-5"),
			Timezone:        getEnv("SCHEDULER_TZ", "Asia/Seoul"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.StoreBackend {
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case "postgres":
		// Postgres 저장소는 DATABASE_URL 필수
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case "none":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: sqlite, postgres, none")
	}

	if c.Engine.Workers < 0 {
		return fmt.Errorf("ENGINE_WORKERS must be >= 0")
	}

	return nil
}

// RedisAddr returns host:port
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
