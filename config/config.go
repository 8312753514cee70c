package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds the server settings read from the environment
type Config struct {
	Port           int           `env:"PORT" envDefault:"8080"`
	GinMode        string        `env:"GIN_MODE" envDefault:"debug"`
	Debug          bool          `env:"DEBUG" envDefault:"false"`
	RedisAddr      string        `env:"REDIS_ADDR"` // Empty disables the session mirror
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"8"`
	SessionID      string        `env:"SESSION_ID"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	SeedData       bool          `env:"SEED_DATA" envDefault:"true"`
	ExportCacheTTL time.Duration `env:"EXPORT_CACHE_TTL" envDefault:"5m"`
}

// Load reads the optional .env files, then parses the environment.
// A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return Parse()
}

// Parse reads Config from the process environment and fills derived defaults
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
