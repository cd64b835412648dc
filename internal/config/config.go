// Package config reads process configuration from the environment.
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
)

type Config struct {
	// HTTP server
	Port        string
	LogLevel    string
	CORSOrigins []string

	// Local ledger
	DataBackend   string
	LedgerDBPath  string
	CSVDateLayout string

	// Backend API database
	SQLiteDBPath string

	// AMQP; an empty URL means codes are logged instead of queued
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	JWTSecret            string
	JWTExpire            time.Duration
	OTPTTL               time.Duration
	OTPMaxAttempts       int
	OTPRequestsPerMinute int

	// Worker
	OTPPurgeSchedule string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DataBackend:   getEnv("EXPENZOO_BACKEND", "sqlite"),
		LedgerDBPath:  getEnv("EXPENZOO_DB_PATH", "./data/expenzoo.db"),
		CSVDateLayout: getEnv("CSV_DATE_LAYOUT", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenzoo-api.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenzoo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "otp_delivery"),

		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTExpire:            getEnvDuration("JWT_EXPIRE", 168*time.Hour),
		OTPTTL:               getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPMaxAttempts:       getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPRequestsPerMinute: getEnvInt("OTP_REQUESTS_PER_MINUTE", 5),

		OTPPurgeSchedule: getEnv("OTP_PURGE_SCHEDULE", "@every 15m"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:         getEnv("SMTP_FROM", "Expenzoo <no-reply@expenzoo.local>"),
	}
}

// Validate checks the settings shared by every command and returns all
// problems in one error.
func (c *Config) Validate() error {
	return joinErrors(c.commonErrors())
}

func (c *Config) commonErrors() []string {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	if !contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "sqlite" {
		errs = append(errs, checkDBPath("EXPENZOO_DB_PATH", c.LedgerDBPath)...)
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}
	return errs
}

// ValidateAPI adds the checks of the backend API to Validate.
func (c *Config) ValidateAPI() error {
	errs := c.commonErrors()
	errs = append(errs, checkDBPath("SQLITE_DB_PATH", c.SQLiteDBPath)...)
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if c.JWTExpire < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid JWT expiry %v: must be at least 1 minute", c.JWTExpire))
	}
	if c.OTPTTL < 30*time.Second || c.OTPTTL > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid OTP TTL %v: must be between 30s and 24h", c.OTPTTL))
	}
	if c.OTPMaxAttempts < 1 || c.OTPMaxAttempts > 20 {
		errs = append(errs, fmt.Sprintf("invalid OTP max attempts %d: must be between 1 and 20", c.OTPMaxAttempts))
	}
	if c.OTPRequestsPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid OTP request limit %d: must be at least 1", c.OTPRequestsPerMinute))
	}
	return joinErrors(errs)
}

// ValidateWorker adds the checks of the OTP delivery worker to Validate.
func (c *Config) ValidateWorker() error {
	errs := c.commonErrors()
	errs = append(errs, checkDBPath("SQLITE_DB_PATH", c.SQLiteDBPath)...)
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required by the worker")
	}
	if _, err := cron.ParseStandard(c.OTPPurgeSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("invalid OTP purge schedule '%s': %v", c.OTPPurgeSchedule, err))
	}
	if c.SMTPHost != "" && (c.SMTPPort < 1 || c.SMTPPort > 65535) {
		errs = append(errs, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
	}
	return joinErrors(errs)
}

// checkDBPath requires a path and creates its directory.
func checkDBPath(key, path string) []string {
	if path == "" {
		return []string{key + " cannot be empty"}
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return []string{fmt.Sprintf("cannot create database directory '%s': %v", dir, err)}
		}
	}
	return nil
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
