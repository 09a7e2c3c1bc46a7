// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. All values come from environment
// variables (optionally via a .env file) with sensible defaults; nothing in
// the core reads the environment directly.
type Config struct {
	DataDir  string // Base directory for the sqlite databases
	Port     int
	LogLevel string
	DevMode  bool

	// Market data provider
	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration // Per-fetch deadline for quote/bar requests

	// Quote cache
	MarketHoursTTL  time.Duration // Freshness window while the market is open
	OffHoursTTL     time.Duration // Freshness window while the market is closed
	CacheMaxEntries int
	CacheSnapshot   string // Path for the msgpack cache snapshot ("" disables)

	// Market calendar
	Exchange string // Exchange code driving the trading calendar (e.g. XNYS)

	// Background jobs
	WarmingSchedule   string // Cron spec for the cache warming job
	WarmingTopN       int    // How many most-accessed symbols to refresh
	PriceSyncSchedule string // Cron spec for the daily price sync job

	// Reconstruction
	PriceLookback  time.Duration // How far before a period start to load prices for backward fill
	RequestTimeout time.Duration // Overall deadline for summary/history requests
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("NETWORTH_DATA_DIR", "./data")
	absDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cfg := &Config{
		DataDir:  absDir,
		Port:     getEnvInt("NETWORTH_PORT", 8090),
		LogLevel: getEnv("NETWORTH_LOG_LEVEL", "info"),
		DevMode:  getEnvBool("NETWORTH_DEV_MODE", false),

		ProviderBaseURL: getEnv("NETWORTH_PROVIDER_URL", "https://www.alphavantage.co"),
		ProviderAPIKey:  getEnv("NETWORTH_PROVIDER_API_KEY", ""),
		ProviderTimeout: getEnvDuration("NETWORTH_PROVIDER_TIMEOUT", 10*time.Second),

		MarketHoursTTL:  getEnvDuration("NETWORTH_CACHE_TTL_MARKET_HOURS", 5*time.Minute),
		OffHoursTTL:     getEnvDuration("NETWORTH_CACHE_TTL_OFF_HOURS", 30*time.Minute),
		CacheMaxEntries: getEnvInt("NETWORTH_CACHE_MAX_ENTRIES", 1000),
		CacheSnapshot:   getEnv("NETWORTH_CACHE_SNAPSHOT", filepath.Join(absDir, "quotes.snapshot")),

		Exchange: getEnv("NETWORTH_EXCHANGE", "XNYS"),

		WarmingSchedule:   getEnv("NETWORTH_WARMING_SCHEDULE", "@every 4m"),
		WarmingTopN:       getEnvInt("NETWORTH_WARMING_TOP_N", 20),
		PriceSyncSchedule: getEnv("NETWORTH_PRICE_SYNC_SCHEDULE", "0 30 22 * * MON-FRI"),

		PriceLookback:  getEnvDuration("NETWORTH_PRICE_LOOKBACK", 30*24*time.Hour),
		RequestTimeout: getEnvDuration("NETWORTH_REQUEST_TIMEOUT", 30*time.Second),
	}

	if cfg.MarketHoursTTL >= cfg.OffHoursTTL {
		return nil, fmt.Errorf("market-hours TTL (%s) must be shorter than off-hours TTL (%s)",
			cfg.MarketHoursTTL, cfg.OffHoursTTL)
	}
	if cfg.CacheMaxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", cfg.CacheMaxEntries)
	}
	if cfg.WarmingTopN <= 0 {
		return nil, fmt.Errorf("warming top-n must be positive, got %d", cfg.WarmingTopN)
	}

	return cfg, nil
}

// LedgerDBPath returns the path to the transaction ledger database.
func (c *Config) LedgerDBPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// HistoryDBPath returns the path to the price history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
