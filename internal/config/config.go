// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"bookshelf.org/internal/auth"
)

// Config holds the settings resolved once at startup.
type Config struct {
	SecretKey      string
	Algorithm      string
	AccessTokenTTL time.Duration

	DatabaseURL string
	HTTPAddr    string
	GRPCAddr    string

	BcryptCost int

	RateLimitBurst     int
	RateLimitPerSecond float64

	CORSOrigins []string

	// TrustedProxies are the networks whose X-Forwarded-For headers are
	// honoured when resolving the client address. Empty means none.
	TrustedProxies []netip.Prefix
}

var defaultCORSOrigins = []string{
	"http://localhost:8087",
	"http://127.0.0.1:8087",
	"http://0.0.0.0:8087",
	"*",
}

// Load reads .env (if present) and then the process environment. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config using getenv to resolve variables.
func FromLookup(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	minutes, err := intVar(get, "ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cost, err := intVar(get, "BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	burst, err := intVar(get, "RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	rps, err := floatVar(get, "RATE_LIMIT_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}
	proxies, err := prefixList(get("TRUSTED_PROXIES", ""))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	cfg := &Config{
		SecretKey:          getenv("SECRET_KEY"),
		Algorithm:          strings.ToUpper(get("ALGORITHM", auth.DefaultAlgorithm)),
		AccessTokenTTL:     time.Duration(minutes) * time.Minute,
		DatabaseURL:        get("DATABASE_URL", ""),
		HTTPAddr:           get("HTTP_ADDR", ":8080"),
		GRPCAddr:           get("GRPC_ADDR", ""),
		BcryptCost:         cost,
		RateLimitBurst:     burst,
		RateLimitPerSecond: rps,
		CORSOrigins:        splitList(get("CORS_ORIGINS", "")),
		TrustedProxies:     proxies,
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("ALGORITHM %q is not supported", c.Algorithm)
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.RateLimitBurst <= 0 || c.RateLimitPerSecond <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	return nil
}

// TokenConfig returns the signing settings for the token issuer.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:    []byte(c.SecretKey),
		Algorithm: c.Algorithm,
		TTL:       c.AccessTokenTTL,
	}
}

// LogFields describes the configuration for the startup log line. The
// secret and database credentials are never included.
func (c *Config) LogFields() map[string]any {
	storage := "memory"
	if c.DatabaseURL != "" {
		storage = "postgres"
	}
	return map[string]any{
		"algorithm":         c.Algorithm,
		"token_ttl_minutes": int(c.AccessTokenTTL / time.Minute),
		"storage":           storage,
		"http_addr":         c.HTTPAddr,
		"grpc_addr":         c.GRPCAddr,
		"bcrypt_cost":       c.BcryptCost,
		"rate_limit_burst":  c.RateLimitBurst,
		"rate_limit_rps":    c.RateLimitPerSecond,
		"cors_origins":      c.CORSOrigins,
		"trusted_proxies":   len(c.TrustedProxies),
	}
}

// String implements fmt.Stringer without exposing the secret.
func (c *Config) String() string {
	return fmt.Sprintf("Config{algorithm=%s ttl=%s http=%s grpc=%s secret=[redacted]}",
		c.Algorithm, c.AccessTokenTTL, c.HTTPAddr, c.GRPCAddr)
}

func intVar(get func(string, string) string, key string, def int) (int, error) {
	raw := get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func floatVar(get func(string, string) string, key string, def float64) (float64, error) {
	raw := get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// prefixList parses a comma separated list of CIDR ranges. A bare address is
// treated as a single-host range.
func prefixList(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range splitList(raw) {
		if !strings.Contains(item, "/") {
			addr, err := netip.ParseAddr(item)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Masked())
	}
	return out, nil
}
