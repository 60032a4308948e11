package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends used when Supabase is not configured.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

type Config struct {
	NodeID    string
	HTTPPort  int
	Debug     bool
	LogLevel  string
	LogFormat string

	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	StoreBackend    string
	DataDir         string
	DemoTokenSecret string

	OpenCageAPIKey    string
	PriceSyncSchedule string

	RateLimitRPS   int
	RateLimitBurst int
	RequestTimeout time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadFile is Load with an explicit dotenv path. A missing file is an error.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env (%s): %w", path, err)
	}
	return FromEnv(), nil
}

func FromEnv() *Config {
	return &Config{
		NodeID:            getEnv("NODE_ID", "farmhand-default"),
		HTTPPort:          getEnvInt("HTTP_PORT", 8000),
		Debug:             getEnvBool("DEBUG", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:   os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseJWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
		StoreBackend:      getEnv("STORE_BACKEND", BackendMemory),
		DataDir:           getEnv("DATA_DIR", "./data"),
		DemoTokenSecret:   getEnv("DEMO_TOKEN_SECRET", "farmhand-demo-secret"),
		OpenCageAPIKey:    os.Getenv("OPENCAGE_API_KEY"),
		PriceSyncSchedule: syncSchedule(),
		RateLimitRPS:      getEnvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 40),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT", 30)) * time.Second,
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SupabaseConfigured reports whether the hosted backend should be used.
// Without both URL and anon key the service runs in demo mode.
func (c *Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// Mode is "supabase" or the demo store backend name.
func (c *Config) Mode() string {
	if c.SupabaseConfigured() {
		return "supabase"
	}
	return c.StoreBackend
}

func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTPPort)
	}
	switch c.StoreBackend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q", c.StoreBackend)
	}
	if c.StoreBackend == BackendBadger && c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required for the badger backend")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// syncSchedule keeps an explicitly empty PRICE_SYNC_SCHEDULE, and "off",
// as "" so the scheduled sync can be disabled.
func syncSchedule() string {
	v, ok := os.LookupEnv("PRICE_SYNC_SCHEDULE")
	if !ok {
		return "@daily"
	}
	if v == "off" {
		return ""
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}
