package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Upstream chain
	RPCURL     string
	PrivateKey string // hex, optional; anvil dev key 0 when empty

	// Anvil fork
	AnvilBin       string
	AnvilPort      int
	StartupTimeout time.Duration

	// Execution
	SlippageBps     int64
	SwapDeadline    time.Duration
	CallDeadline    time.Duration
	BatchDeadline   time.Duration
	TakerSeedFactor int64 // how many fills the taker is funded and approved for

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Upstream chain defaults
		RPCURL:     os.Getenv("RPC_URL"),
		PrivateKey: os.Getenv("PRIVATE_KEY"),

		// Anvil defaults
		AnvilBin:       getEnvOrDefault("ANVIL_BIN", "anvil"),
		AnvilPort:      getIntOrDefault("ANVIL_PORT", 8545),
		StartupTimeout: getDurationOrDefault("ANVIL_STARTUP_TIMEOUT", 30*time.Second),

		// Execution defaults. Zero slippage means amountOutMin equals the
		// live quote.
		SlippageBps:     getInt64OrDefault("SLIPPAGE_BPS", 0),
		SwapDeadline:    getDurationOrDefault("SWAP_DEADLINE", 20*time.Minute),
		CallDeadline:    getDurationOrDefault("CALL_DEADLINE", 5*time.Minute),
		BatchDeadline:   getDurationOrDefault("BATCH_DEADLINE", 30*time.Minute),
		TakerSeedFactor: getInt64OrDefault("TAKER_SEED_FACTOR", 10),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "dexsim"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "dexsim123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "dexsim"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL cannot be empty")
	}

	if c.AnvilPort <= 0 || c.AnvilPort > 65535 {
		return fmt.Errorf("ANVIL_PORT must be a valid port, got %d", c.AnvilPort)
	}

	if c.SlippageBps < 0 || c.SlippageBps >= 10_000 {
		return fmt.Errorf("SLIPPAGE_BPS must be between 0 and 10000, got %d", c.SlippageBps)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
