// internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const Version = "1.0.0"

type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration

	DBPath         string
	DBMaxOpenConns int

	LogMode  string
	LogLevel string

	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// RecomputeDependents makes food and recipe updates refresh the cached
	// totals of every recipe and meal built on them.
	RecomputeDependents bool

	ShowVersion bool
}

// Load reads an optional .env file, then parses args. Environment variables
// provide the flag defaults, so an explicit flag always wins.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	var address string

	fs := flag.NewFlagSet("nutrition-log", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", getEnv("HOST", "0.0.0.0"), "Host address")
	fs.StringVar(&address, "address", "", "Address (alias for host)")
	fs.IntVar(&cfg.Port, "port", getEnvInt("PORT", 8011), "Port for HTTP transport")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second), "Graceful shutdown timeout")
	fs.StringVar(&cfg.DBPath, "db-path", getEnv("DB_PATH", "/data/nutrition-log.db"), "Database path")
	fs.IntVar(&cfg.DBMaxOpenConns, "db-max-open-conns", getEnvInt("DB_MAX_OPEN_CONNS", 1), "Maximum open database connections")
	fs.StringVar(&cfg.LogMode, "log-mode", getEnv("LOG_MODE", "dev"), "Log mode: dev or prod")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", ""), "Log level (debug, info, warn, error); mode default when empty")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 60*time.Second), "TTL for cached list responses")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", ""), "Redis address for the list cache (in-memory when empty)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.BoolVar(&cfg.RecomputeDependents, "recompute-dependents", getEnvBool("RECOMPUTE_DEPENDENTS", false), "Recompute recipes and meals when a food or recipe changes")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if address != "" {
		cfg.Host = address
	}

	if cfg.ShowVersion {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if c.DBMaxOpenConns <= 0 {
		return fmt.Errorf("invalid db max open conns %d", c.DBMaxOpenConns)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("invalid cache ttl %s", c.CacheTTL)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout %s", c.ShutdownTimeout)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis db %d", c.RedisDB)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
