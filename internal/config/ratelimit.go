package config

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitConfig configures the Redis token bucket applied to the
// credential endpoints.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"6s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_route"`
	// LoginKeyStrategy keys the extra bucket in front of POST /auth/login.
	// Empty disables it.
	LoginKeyStrategy string `env:"RATE_LIMIT_LOGIN_KEY_STRATEGY" envDefault:"identity"`
	Prefix           string `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
	Debug            bool   `env:"RATE_LIMIT_DEBUG"`
}

// normalize clamps values that would make the bucket degenerate. The key
// TTL must outlive several refill intervals or idle buckets reset early.
func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	if c.Prefix == "" {
		c.Prefix = "rl"
	}
}

var rateKeyStrategies = map[string]bool{"ip": true, "ip_route": true, "identity": true}

func (c RateLimitConfig) validate() error {
	if c.KeyStrategy != "" && !rateKeyStrategies[strings.ToLower(c.KeyStrategy)] {
		return fmt.Errorf("RATE_LIMIT_KEY_STRATEGY must be ip, ip_route or identity, got %q", c.KeyStrategy)
	}
	if c.LoginKeyStrategy != "" && !rateKeyStrategies[strings.ToLower(c.LoginKeyStrategy)] {
		return fmt.Errorf("RATE_LIMIT_LOGIN_KEY_STRATEGY must be ip, ip_route, identity or empty, got %q", c.LoginKeyStrategy)
	}
	return nil
}

// ForLogin returns the settings of the login-only bucket.
func (c RateLimitConfig) ForLogin() RateLimitConfig {
	l := c
	l.KeyStrategy = c.LoginKeyStrategy
	l.Enabled = c.Enabled && c.LoginKeyStrategy != ""
	return l
}
