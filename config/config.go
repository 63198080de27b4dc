// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT,default=5000"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	MongoURI string `env:"MONGODB_URI,required"`
	DBName   string `env:"DB_NAME,default=assetmgt"`
	DBUser   string `env:"DB_USER"`
	DBPass   string `env:"DB_PASS"`

	AccessTokenSecret string `env:"ACCESS_TOKEN_SECRET,required"`

	StripeSecretKey string `env:"STRIPE_SECRET_KEY,required"`
	StripeAPIURL    string `env:"STRIPE_API_URL,default=https://api.stripe.com"`
	SiteURL         string `env:"SITE_URL,required"`
	// CORSOrigins is a comma-separated list added to SiteURL.
	CORSOrigins string `env:"CORS_ORIGINS"`

	DefaultPackageLimit int `env:"DEFAULT_PACKAGE_LIMIT,default=5"`

	RateLimitRPS   int           `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST,default=40"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	// TrustedProxies lists addresses or CIDR ranges whose X-Forwarded-For
	// header is believed, comma-separated.
	TrustedProxies string `env:"TRUSTED_PROXIES"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DefaultPackageLimit < 0 {
		return fmt.Errorf("DEFAULT_PACKAGE_LIMIT must be >= 0, got %d", c.DefaultPackageLimit)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// AllowedOrigins is SiteURL plus any CORS_ORIGINS entries.
func (c Config) AllowedOrigins() []string {
	out := []string{strings.TrimRight(c.SiteURL, "/")}
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
