package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Store
	StoreDir      string // badger data directory
	StoreInMemory bool   // run the local replica without a disk directory

	// Attribution
	ServiceUser string // identity stamped onto created records

	// Timing discipline for the eventually-consistent store. The store gives
	// no latency bound, so every wait in the system is one of these.
	Timing Timing
}

// Timing collects every timeout, window and delay the reconciliation layer
// uses. The values are tuned empirically against the backing store's latency
// profile and are expected to be overridden per deployment.
type Timing struct {
	CheckTimeout  time.Duration // existence check before create; silence means absent
	WriteTimeout  time.Duration // ack wait on a put; silence means assumed ok
	CollectWindow time.Duration // how long a full-namespace snapshot collects
	SettleDelay   time.Duration // pause between the two sides of an edge
	ImportDelay   time.Duration // pause between bulk-import items
	RetryLimit    int           // create-write attempts before a real failure
	RetryBackoff  time.Duration // base backoff, grows linearly per attempt
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		StoreDir:      getEnv("STORE_DIR", "data"),
		StoreInMemory: getEnvBool("STORE_IN_MEMORY", false),
		ServiceUser:   getEnv("SERVICE_USER", ""),
		Timing: Timing{
			CheckTimeout:  getEnvDuration("CHECK_TIMEOUT_MS", 500*time.Millisecond),
			WriteTimeout:  getEnvDuration("WRITE_TIMEOUT_MS", 2*time.Second),
			CollectWindow: getEnvDuration("COLLECT_WINDOW_MS", 1500*time.Millisecond),
			SettleDelay:   getEnvDuration("SETTLE_DELAY_MS", 300*time.Millisecond),
			ImportDelay:   getEnvDuration("IMPORT_DELAY_MS", 250*time.Millisecond),
			RetryLimit:    getEnvInt("RETRY_LIMIT", 3),
			RetryBackoff:  getEnvDuration("RETRY_BACKOFF_MS", 200*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if !c.StoreInMemory && c.StoreDir == "" {
		return fmt.Errorf("STORE_DIR is required unless STORE_IN_MEMORY is set")
	}
	if c.Timing.CheckTimeout <= 0 {
		return fmt.Errorf("CHECK_TIMEOUT_MS must be positive")
	}
	if c.Timing.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT_MS must be positive")
	}
	if c.Timing.RetryLimit < 1 {
		return fmt.Errorf("RETRY_LIMIT must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration reads a millisecond count from the environment.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
