package bakersdozen

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/bakersdozen/bakersdozen.go/pkg/cache"
	"github.com/bakersdozen/bakersdozen.go/pkg/connmon"
	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
)

// Environment variables consumed by FromEnv.
const (
	EnvURL     = "BAKERSDOZEN_URL"
	EnvAnonKey = "BAKERSDOZEN_ANON_KEY"
)

// Config carries everything needed to construct a DB.
type Config struct {
	// URL is the backend base URL, e.g. "ws://localhost:8000".
	URL string
	// AnonKey is the anonymous API key presented on connect.
	AnonKey string
	// Logger receives the SDK's diagnostics. Defaults to slog on stderr.
	Logger logger.Logger
	// Store backs the offline cache. Defaults to an in-memory store; use
	// cache.NewFileStore for persistence across restarts.
	Store cache.Store
	// ProbeInterval is the connection monitor's re-probe cadence.
	ProbeInterval time.Duration
}

// NewConfig returns a Config with defaults filled in.
func NewConfig(url, anonKey string) *Config {
	return &Config{
		URL:           url,
		AnonKey:       anonKey,
		Logger:        logger.New(slog.NewTextHandler(os.Stderr, nil)),
		Store:         cache.NewMemoryStore(),
		ProbeInterval: connmon.DefaultInterval,
	}
}

// FromEnv builds a Config from the process environment, loading a .env file
// first when one is present. Missing variables are logged as an error but do
// not halt startup: the client is constructed with empty strings and every
// backend call will fail, leaving reads on the cache path.
func FromEnv() *Config {
	// Best effort: absence of a .env file is the common case in production.
	_ = godotenv.Load()

	c := NewConfig(os.Getenv(EnvURL), os.Getenv(EnvAnonKey))
	if c.URL == "" || c.AnonKey == "" {
		c.Logger.Error("missing backend environment variables",
			"url_var", EnvURL, "key_var", EnvAnonKey)
	}
	return c
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Logger == nil {
		out.Logger = logger.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if out.Store == nil {
		out.Store = cache.NewMemoryStore()
	}
	if out.ProbeInterval <= 0 {
		out.ProbeInterval = connmon.DefaultInterval
	}
	return &out
}
