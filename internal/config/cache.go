package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// CacheConfig defines settings for the response cache middleware.  The cache
// only fronts slow provider lookups (payment methods); it is disabled when no
// Redis client is configured.  Methods lists the HTTP methods to cache.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

type cacheEnv struct {
	Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	Methods      string        `env:"CACHE_METHODS" envDefault:"GET"`
	TTL          time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"org_route_query"`
	Prefix       string        `env:"CACHE_PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// LoadCacheConfig reads the cache settings.  All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
	var raw cacheEnv
	if err := env.Parse(&raw); err != nil {
		raw = cacheEnv{Enabled: true, Methods: "GET", TTL: 5 * time.Minute, KeyStrategy: "org_route_query", Prefix: "cache", MaxBodyBytes: 1 << 20}
	}
	return CacheConfig{
		Enabled:      raw.Enabled,
		Methods:      parseMethods(raw.Methods),
		TTL:          raw.TTL,
		KeyStrategy:  raw.KeyStrategy,
		Prefix:       raw.Prefix,
		MaxBodyBytes: raw.MaxBodyBytes,
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
