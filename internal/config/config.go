package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
)

const (
	CacheBackendSqlite = "sqlite"
	CacheBackendRedis  = "redis"
)

type Config struct {
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"15m"`
	SourceTimeout   time.Duration `env:"SOURCE_TIMEOUT" envDefault:"10s"`
	RefreshSchedule string        `env:"REFRESH_SCHEDULE" envDefault:"@every 15m"`
	CacheBackend    string        `env:"CACHE_BACKEND" envDefault:"sqlite"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	HistoryDays     int           `env:"HISTORY_DAYS" envDefault:"30"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	UserAgent       string        `env:"USER_AGENT" envDefault:"fuel-prices-aggregator/1.0"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	switch cfg.CacheBackend {
	case CacheBackendSqlite, CacheBackendRedis:
	default:
		return errors.Newf("unsupported cache backend: %q", cfg.CacheBackend)
	}
	if cfg.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if cfg.SourceTimeout <= 0 {
		return errors.New("SOURCE_TIMEOUT must be positive")
	}
	if cfg.HistoryDays <= 0 {
		return errors.New("HISTORY_DAYS must be positive")
	}
	return nil
}
