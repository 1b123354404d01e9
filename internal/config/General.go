package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFile enables a rotating JSON log file next to console output when set.
	LogFile string

	// WebPort is the port of the REST API.
	WebPort string

	// OptimizerParallelism bounds concurrent grid points. 0 means GOMAXPROCS.
	OptimizerParallelism int
	// DefaultSeed seeds synthetic paths when a request does not name one.
	DefaultSeed int64
	// DefaultCapital overrides DefaultSimulationParameters.Capital when set.
	DefaultCapital decimal.Decimal

	// CryptoCompareAPIKey authenticates historical price downloads. Optional.
	CryptoCompareAPIKey string

	// SchedulerInterval is the time between two re-optimization cycles.
	SchedulerInterval time.Duration
	// SchedulerSymbol is the base asset re-optimized by the scheduler.
	SchedulerSymbol string

	// Database holds the PostgreSQL settings. Persistence is disabled when DB_NAME is unset.
	Database DatabaseConfig
)

// DatabaseConfig mirrors the DB_* environment variables.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether enough is configured to open a connection.
func (d DatabaseConfig) Enabled() bool {
	return d.Name != "" && d.User != ""
}

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Every variable is optional; malformed values are errors.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = getEnvOrDefault("LOG_FILE", "")
	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	OptimizerParallelism, err = getEnvAsInt("OPTIMIZER_PARALLELISM", 0)
	if err != nil {
		return err
	}
	if OptimizerParallelism < 0 {
		return errors.New("environment variable OPTIMIZER_PARALLELISM cannot be negative")
	}

	seed, err := getEnvAsUint64("DEFAULT_SEED", 42)
	if err != nil {
		return err
	}
	DefaultSeed = int64(seed)

	DefaultCapital, err = getEnvAsDecimal("DEFAULT_CAPITAL", DefaultSimulationParameters.Capital)
	if err != nil {
		return err
	}
	if !DefaultCapital.IsPositive() {
		return errors.New("environment variable DEFAULT_CAPITAL must be positive, got: " + DefaultCapital.String())
	}

	CryptoCompareAPIKey = getEnvOrDefault("CRYPTOCOMPARE_API", "")

	SchedulerInterval, err = getEnvAsDuration("SCHEDULER_INTERVAL", time.Hour)
	if err != nil {
		return err
	}
	SchedulerSymbol = getEnvOrDefault("SCHEDULER_SYMBOL", "SOL")

	Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	Database.Port, err = getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return err
	}
	Database.User = getEnvOrDefault("DB_USER", "")
	Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	Database.Name = getEnvOrDefault("DB_NAME", "")
	Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	log.Debug().
		Str("WebPort", WebPort).
		Int("OptimizerParallelism", OptimizerParallelism).
		Int64("DefaultSeed", DefaultSeed).
		Bool("Database", Database.Enabled()).
		Dur("SchedulerInterval", SchedulerInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, or fallback when it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	value, err := getEnv(key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsInt(key string, fallback int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if set but invalid.
func getEnvAsUint64(key string, fallback uint64) (uint64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDecimal retrieves an environment variable as a decimal. Returns error if set but invalid.
func getEnvAsDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, errors.New("environment variable " + key + " must be a valid decimal, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an environment variable as a Go duration such as "30m".
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}
