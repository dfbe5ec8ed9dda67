package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                   string
	DatabaseURL            string
	JWTSecret              string
	Environment            string
	Timezone               string
	IncludeValidatedOnly   bool
	MaxDailyHours          float64
	MaxWeeklyHours         float64
	HoursMismatchTolerance float64
	ReconcileWorkers       int
	ReconcileInterval      time.Duration
	ReconcileLookback      time.Duration
	RulesFile              string
	KafkaBrokers           []string
	AlertTopic             string
	AlertMinSeverity       string
	ReportDir              string
	MigrationsDir          string
	RunMigrations          bool
	MaxBodyBytes           int64
	MetricsEnabled         bool
	CORSOrigins            []string
}

func Load() Config {
	return Config{
		Addr:                   getEnv("APP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		Environment:            getEnv("APP_ENV", "development"),
		Timezone:               getEnv("TIMEZONE", "UTC"),
		IncludeValidatedOnly:   getEnvBool("INCLUDE_VALIDATED_DATA_ONLY", false),
		MaxDailyHours:          getEnvFloat("MAX_DAILY_HOURS", 10),
		MaxWeeklyHours:         getEnvFloat("MAX_WEEKLY_HOURS", 48),
		HoursMismatchTolerance: getEnvFloat("HOURS_MISMATCH_TOLERANCE", 0.5),
		ReconcileWorkers:       getEnvInt("RECONCILE_WORKERS", 0),
		ReconcileInterval:      getEnvDuration("RECONCILE_INTERVAL", 0),
		ReconcileLookback:      getEnvDuration("RECONCILE_LOOKBACK", 7*24*time.Hour),
		RulesFile:              getEnv("RULES_FILE", ""),
		KafkaBrokers:           getEnvList("KAFKA_BROKERS"),
		AlertTopic:             getEnv("ALERT_TOPIC", "attendance.issues"),
		AlertMinSeverity:       getEnv("ALERT_MIN_SEVERITY", "error"),
		ReportDir:              getEnv("REPORT_DIR", "storage/reports"),
		MigrationsDir:          getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:          getEnvBool("RUN_MIGRATIONS", true),
		MaxBodyBytes:           int64(getEnvInt("MAX_BODY_BYTES", 10*1048576)),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
		CORSOrigins:            getEnvList("CORS_ORIGINS"),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Location resolves TIMEZONE; day boundaries and clock times are taken there.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.MaxDailyHours <= 0 || c.MaxWeeklyHours <= 0 {
		return fmt.Errorf("MAX_DAILY_HOURS and MAX_WEEKLY_HOURS must be positive")
	}
	if c.HoursMismatchTolerance < 0 {
		return fmt.Errorf("HOURS_MISMATCH_TOLERANCE must not be negative")
	}
	if c.ReconcileWorkers < 0 {
		return fmt.Errorf("RECONCILE_WORKERS must not be negative")
	}
	if c.ReconcileInterval > 0 && c.ReconcileLookback <= 0 {
		return fmt.Errorf("RECONCILE_LOOKBACK must be positive when RECONCILE_INTERVAL is set")
	}
	if c.AlertMinSeverity != "warning" && c.AlertMinSeverity != "error" {
		return fmt.Errorf("ALERT_MIN_SEVERITY must be warning or error")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	return nil
}
