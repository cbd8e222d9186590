package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	MySQLDSN          string
	MySQLMaxOpenConns int
	MySQLMaxIdleConns int

	RedisAddr     string
	RedisPoolSize int

	LogLevel  string
	LogFormat string

	EventChannelPrefix string
	WebhookURL         string
	WebhookTimeout     time.Duration
	PublishTimeout     time.Duration

	LockBackend string // "redis" or "local"
	LockTTL     time.Duration
	LockWait    time.Duration

	AuditAppendAttempts int
	RescoreSchedule     string
	RescoreBatchSize    int
}

// Load reads an optional .env file, then the environment, falling back to defaults.
// Values that could not be used are reported as warnings for the caller to log.
func Load() (*Config, []string) {
	var env envReader
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		env.warnf("could not read .env: %v", err)
	}

	cfg := &Config{
		HTTPAddr: env.get("HTTP_ADDR", ":8080"),
		GRPCAddr: env.get("GRPC_ADDR", ":50051"),

		MySQLDSN:          env.get("MYSQL_DSN", "root:root@tcp(localhost:3306)/orderledger?parseTime=true"),
		MySQLMaxOpenConns: env.getInt("MYSQL_MAX_OPEN_CONNS", 50),
		MySQLMaxIdleConns: env.getInt("MYSQL_MAX_IDLE_CONNS", 25),

		RedisAddr:     env.get("REDIS_ADDR", "localhost:6379"),
		RedisPoolSize: env.getInt("REDIS_POOL_SIZE", 100),

		LogLevel:  env.get("LOG_LEVEL", "info"),
		LogFormat: env.get("LOG_FORMAT", "json"),

		EventChannelPrefix: env.get("EVENT_CHANNEL_PREFIX", "orderledger"),
		WebhookURL:         env.get("WEBHOOK_URL", ""),
		WebhookTimeout:     env.getDuration("WEBHOOK_TIMEOUT", 3*time.Second),
		PublishTimeout:     env.getDuration("PUBLISH_TIMEOUT", 5*time.Second),

		LockBackend: env.get("LOCK_BACKEND", "redis"),
		LockTTL:     env.getDuration("LOCK_TTL", 10*time.Second),
		LockWait:    env.getDuration("LOCK_WAIT", 5*time.Second),

		AuditAppendAttempts: env.getInt("AUDIT_APPEND_ATTEMPTS", 3),
		RescoreSchedule:     env.get("RESCORE_SCHEDULE", "@every 1m"),
		RescoreBatchSize:    env.getInt("RESCORE_BATCH_SIZE", 100),
	}
	return cfg, env.warnings
}

// DatabaseDSN returns MYSQL_DSN with parseTime forced on; DATETIME columns scan into time.Time.
func (c *Config) DatabaseDSN() (string, error) {
	dsn, err := mysql.ParseDSN(c.MySQLDSN)
	if err != nil {
		return "", fmt.Errorf("MYSQL_DSN: %w", err)
	}
	dsn.ParseTime = true
	return dsn.FormatDSN(), nil
}

func (c *Config) Validate() error {
	if c.MySQLDSN == "" {
		return errors.New("MYSQL_DSN is required")
	}
	if _, err := c.DatabaseDSN(); err != nil {
		return err
	}
	if c.LockBackend != "redis" && c.LockBackend != "local" {
		return fmt.Errorf("LOCK_BACKEND must be redis or local, got %q", c.LockBackend)
	}
	if c.AuditAppendAttempts < 1 {
		return fmt.Errorf("AUDIT_APPEND_ATTEMPTS must be positive, got %d", c.AuditAppendAttempts)
	}
	if c.RescoreBatchSize < 1 {
		return fmt.Errorf("RESCORE_BATCH_SIZE must be positive, got %d", c.RescoreBatchSize)
	}
	for name, d := range map[string]time.Duration{
		"LOCK_TTL":        c.LockTTL,
		"LOCK_WAIT":       c.LockWait,
		"WEBHOOK_TIMEOUT": c.WebhookTimeout,
		"PUBLISH_TIMEOUT": c.PublishTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if _, err := cron.ParseStandard(c.RescoreSchedule); err != nil {
		return fmt.Errorf("RESCORE_SCHEDULE: %w", err)
	}
	return nil
}

type envReader struct {
	warnings []string
}

func (r *envReader) warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *envReader) get(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.warnf("invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		r.warnf("invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
