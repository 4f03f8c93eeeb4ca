package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"fintrack/internal/log"
)

type Config struct {
	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL          string
	AMQPExchange     string
	AMQPRequestQueue string
	AMQPResultQueue  string

	// Engine
	RecommendationLimit int
	ZScoreThreshold     float64
	SpikeWindowDays     int
	SnapshotCacheTTL    time.Duration
	SnapshotCacheSize   int

	// Worker
	WorkerConcurrency int
	DigestSchedule    string
	RecurringSchedule string
	MetricsAddr       string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPRequestQueue: getEnv("AMQP_REQUEST_QUEUE", "recommendation_requests"),
		AMQPResultQueue:  getEnv("AMQP_RESULT_QUEUE", "recommendation_results"),

		RecommendationLimit: getEnvInt("RECOMMENDATION_LIMIT", 5),
		ZScoreThreshold:     getEnvFloat("ZSCORE_THRESHOLD", 2.5),
		SpikeWindowDays:     getEnvInt("SPIKE_WINDOW_DAYS", 30),
		SnapshotCacheTTL:    getEnvDuration("SNAPSHOT_CACHE_TTL", 0),
		SnapshotCacheSize:   getEnvInt("SNAPSHOT_CACHE_SIZE", 256),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),
		DigestSchedule:    getEnv("DIGEST_SCHEDULE", ""),
		RecurringSchedule: schedule(getEnv("RECURRING_SCHEDULE", "@hourly")),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "postgres"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRequestQueue == "" || c.AMQPResultQueue == "" {
			errors = append(errors, "AMQP request and result queue names cannot be empty when AMQP URL is provided")
		} else if c.AMQPRequestQueue == c.AMQPResultQueue {
			errors = append(errors, "AMQP request and result queues must differ")
		}
	}

	if c.RecommendationLimit < 1 || c.RecommendationLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid recommendation limit %d: must be between 1 and 100", c.RecommendationLimit))
	}
	if c.ZScoreThreshold <= 0 {
		errors = append(errors, fmt.Sprintf("invalid z-score threshold %v: must be positive", c.ZScoreThreshold))
	}
	if c.SpikeWindowDays < 1 || c.SpikeWindowDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid spike window %d: must be between 1 and 366 days", c.SpikeWindowDays))
	}
	if c.SnapshotCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache TTL %v: cannot be negative", c.SnapshotCacheTTL))
	}
	if c.SnapshotCacheTTL > 0 && c.SnapshotCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache size %d: must be at least 1", c.SnapshotCacheSize))
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be between 1 and 64", c.WorkerConcurrency))
	}
	if c.DigestSchedule != "" {
		if _, err := cron.ParseStandard(c.DigestSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid digest schedule '%s': %v", c.DigestSchedule, err))
		}
	}
	if c.RecurringSchedule != "" {
		if _, err := cron.ParseStandard(c.RecurringSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid recurring schedule '%s': %v", c.RecurringSchedule, err))
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// schedule maps "off" to the empty schedule, which disables the job.
func schedule(s string) string {
	if strings.EqualFold(s, "off") {
		return ""
	}
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
