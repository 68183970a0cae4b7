package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBDriver string
	DBConn   string
	LogLevel string

	JWTSecret string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	NotifyTo     string

	MaxInstallments            int
	UrgentThresholdDays        int
	DefaultMissedInstallments  int
	LevyInterestRate           decimal.Decimal
	Currency                   string
	SweepSchedule              string
	RequirePlanOfferOnRecovery bool
}

// NewConfig loads configuration from environment variables. A .env file in the
// working directory, if present, is loaded first and never overrides the environment.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=strata sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", "levies@localhost"),
		NotifyTo:      getEnv("NOTIFY_TO", ""),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 2 * * *"),
		Currency:      strings.ToUpper(strings.TrimSpace(getEnv("CURRENCY", "AUD"))),
	}

	var err error
	if cfg.MaxInstallments, err = getEnvInt("MAX_INSTALLMENTS", "52"); err != nil {
		return nil, err
	}
	if cfg.UrgentThresholdDays, err = getEnvInt("URGENT_THRESHOLD_DAYS", "7"); err != nil {
		return nil, err
	}
	// No default: the number of consecutive missed installments that defaults a
	// plan is a committee policy and must be configured.
	if cfg.DefaultMissedInstallments, err = getEnvInt("PLAN_DEFAULT_MISSED_INSTALLMENTS", ""); err != nil {
		return nil, err
	}
	if cfg.LevyInterestRate, err = decimal.NewFromString(getEnv("LEVY_INTEREST_RATE", "0")); err != nil {
		return nil, fmt.Errorf("LEVY_INTEREST_RATE: %w", err)
	}
	if cfg.RequirePlanOfferOnRecovery, err = strconv.ParseBool(getEnv("RECOVERY_REQUIRE_PLAN_OFFER", "false")); err != nil {
		return nil, fmt.Errorf("RECOVERY_REQUIRE_PLAN_OFFER: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.DBConn == "" {
		return fmt.Errorf("DB_CONN is required")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MaxInstallments < 1 {
		return fmt.Errorf("MAX_INSTALLMENTS must be at least 1")
	}
	if cfg.UrgentThresholdDays < 0 {
		return fmt.Errorf("URGENT_THRESHOLD_DAYS must not be negative")
	}
	if cfg.DefaultMissedInstallments < 1 {
		return fmt.Errorf("PLAN_DEFAULT_MISSED_INSTALLMENTS is required and must be at least 1")
	}
	if cfg.LevyInterestRate.IsNegative() {
		return fmt.Errorf("LEVY_INTEREST_RATE must not be negative")
	}
	if len(cfg.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a three-letter ISO 4217 code, got %q", cfg.Currency)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key, defaultVal string) (int, error) {
	raw := getEnv(key, defaultVal)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
