package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv                 string
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ReportCacheTTLSeconds  int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	TaxRatePercent         float64
	StockOutPolicy         string
	DiscountClampFixed     bool
	Timezone               string
	NotifyWebhookURL       string
	NotifyTimeoutSeconds   int
	NotifyWorkers          int
	MigrateOnStart         bool
	FeedbackCommentsLimit  int
	TopProductsLimit       int
	ShutdownTimeoutSeconds int
}

// LoadDotEnv reads the given files (".env" when none are given) into the
// process environment. Variables that are already set win, and missing files
// are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() Config {
	return Config{
		AppEnv:                 getEnv("APP_ENV", "development"),
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0, 0),
		ReportCacheTTLSeconds:  getInt("REPORT_CACHE_TTL_SECONDS", 86400, 1),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		TaxRatePercent:         getFloat("TAX_RATE_PERCENT", 8),
		StockOutPolicy:         strings.ToLower(getEnv("STOCK_OUT_POLICY", "clamp")),
		DiscountClampFixed:     getBool("DISCOUNT_CLAMP_FIXED", true),
		Timezone:               getEnv("TIMEZONE", "UTC"),
		NotifyWebhookURL:       strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL")),
		NotifyTimeoutSeconds:   getInt("NOTIFY_TIMEOUT_SECONDS", 5, 1),
		NotifyWorkers:          getInt("NOTIFY_WORKERS", 4, 1),
		MigrateOnStart:         getBool("MIGRATE_ON_START", true),
		FeedbackCommentsLimit:  getInt("FEEDBACK_RECENT_COMMENTS", 10, 1),
		TopProductsLimit:       getInt("REPORT_TOP_PRODUCTS", 5, 1),
		ShutdownTimeoutSeconds: getInt("SHUTDOWN_TIMEOUT_SECONDS", 8, 1),
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.AuthSecret) < 32 {
		errs = append(errs, errors.New("AUTH_SECRET must be set and at least 32 characters"))
	}
	if c.TaxRatePercent < 0 || c.TaxRatePercent > 100 {
		errs = append(errs, fmt.Errorf("TAX_RATE_PERCENT must be between 0 and 100, got %v", c.TaxRatePercent))
	}
	if c.StockOutPolicy != "clamp" && c.StockOutPolicy != "reject" {
		errs = append(errs, fmt.Errorf("STOCK_OUT_POLICY must be clamp or reject, got %q", c.StockOutPolicy))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	// The in-memory store seeds demo accounts with known passwords.
	if c.IsProduction() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set when APP_ENV is production"))
	}
	return errors.Join(errs...)
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, min int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < min {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}
