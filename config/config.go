package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Integration configuration
	Integration struct {
		// Name of the target area reported in catalogs
		Area string `env:"INTEGRATION_AREA" envDefault:"강남구 삼성1동"`

		// Score at or above which two listings are duplicates
		DuplicateThreshold float64 `env:"DEDUP_THRESHOLD" envDefault:"0.85"`

		// Geohash characters used for blocking located listings
		GeohashPrecision uint `env:"DEDUP_GEOHASH_PRECISION" envDefault:"6"`

		// Address runes used for blocking listings without coordinates
		AddressPrefixRunes int `env:"DEDUP_ADDRESS_PREFIX" envDefault:"8"`

		// Concurrent normalization workers
		NormalizeWorkers int `env:"NORMALIZE_WORKERS" envDefault:"4"`

		// Concurrent block clustering workers
		ResolveWorkers int `env:"RESOLVE_WORKERS" envDefault:"4"`

		// Overall deadline for one run, 0 disables it
		Deadline time.Duration `env:"INTEGRATION_DEADLINE" envDefault:"0s"`
	}

	// BatchProcessing configuration
	BatchProcessing struct {
		// Catalogs buffered for persistence
		QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"16"`

		// Number of concurrent catalog persisters
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"1"`

		// Maximum number of retries for a failed save
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries
		RetryDelay time.Duration `env:"BATCH_RETRY_DELAY" envDefault:"5s"`
	}

	Server struct {
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Lifetime of cached integration results
		CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

		// Interval between scheduled re-integrations, 0 disables them
		RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"0s"`

		ManifestPath string `env:"MANIFEST_PATH" envDefault:"config/manifest.yaml"`

		AllowedOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	Database struct {
		// sqlite or postgres
		Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DB_DSN" envDefault:"database/catalog.db"`

		// Stored runs kept after each save, 0 keeps everything
		KeepRuns int `env:"DB_KEEP_RUNS" envDefault:"50"`
	}
}

// LoadConfig reads an optional .env file and parses the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c *Config) Validate() error {
	if c.Integration.DuplicateThreshold <= 0 || c.Integration.DuplicateThreshold > 1 {
		return fmt.Errorf("DEDUP_THRESHOLD must be in (0, 1], got %v", c.Integration.DuplicateThreshold)
	}
	if c.Integration.GeohashPrecision < 1 || c.Integration.GeohashPrecision > 12 {
		return fmt.Errorf("DEDUP_GEOHASH_PRECISION must be between 1 and 12, got %d", c.Integration.GeohashPrecision)
	}
	if c.Integration.Deadline < 0 {
		return errors.New("INTEGRATION_DEADLINE must not be negative")
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	return nil
}
