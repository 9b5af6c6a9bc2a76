// Package config reads the gateway configuration from the environment.
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds everything the gateway needs at startup. All values have
// workable local-development defaults except the bootstrap token, which is
// optional by design.
type Config struct {
	Addr         string `env:"LOVEBOX_ADDR" env-default:":8080"`
	APIBase      string `env:"LOVEBOX_API_BASE" env-default:"http://127.0.0.1:3001"`
	PublicOrigin string `env:"LOVEBOX_ORIGIN" env-default:"http://localhost:8080"`

	// CachePath is the SQLite credential cache; empty keeps it in memory.
	CachePath string `env:"LOVEBOX_CACHE" env-default:"data/lovebox.db"`
	// BootstrapToken is adopted into the cache once at startup, for first
	// runs and share-link style hand-over.
	BootstrapToken string        `env:"LOVEBOX_TOKEN"`
	CachePoll      time.Duration `env:"LOVEBOX_CACHE_POLL" env-default:"1s"`

	LogFile string `env:"LOVEBOX_LOG_FILE"`

	RateBurst     int   `env:"LOVEBOX_RATE_BURST" env-default:"50"`
	RatePerSecond int   `env:"LOVEBOX_RATE_PER_SECOND" env-default:"25"`
	MaxBodyBytes  int64 `env:"LOVEBOX_MAX_BODY" env-default:"10485760"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
