package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration. Every key has a default so the server
// boots with nothing but a database reachable on localhost.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Billing       BillingConfig       `mapstructure:"billing"`
	Identity      IdentityConfig      `mapstructure:"identity"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerSecond int           `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
	// AppURL is the public origin of the web app, used to build absolute
	// redirect and fetch URLs.
	AppURL string `mapstructure:"app_url"`
	// StaticDir holds the built web app served behind the route guard.
	StaticDir string `mapstructure:"static_dir"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// URL, when set, wins over the discrete fields.
	URL string `mapstructure:"url"`
}

// DSN builds a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type BillingConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessPath   string `mapstructure:"success_path"`
	CancelPath    string `mapstructure:"cancel_path"`
}

// Configured reports whether webhooks can be verified and the provider called.
func (b BillingConfig) Configured() bool {
	return b.SecretKey != "" && b.WebhookSecret != ""
}

type IdentityConfig struct {
	ProjectURL    string `mapstructure:"project_url"`
	AnonKey       string `mapstructure:"anon_key"`
	JWTSecret     string `mapstructure:"jwt_secret"`
	SessionSecret string `mapstructure:"session_secret"`
	SessionName   string `mapstructure:"session_name"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

type CacheConfig struct {
	// Backend is memory or redis.
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	AuthDataTTL   time.Duration `mapstructure:"auth_data_ttl"`
	// AuthDataURL points the aggregator at a remote auth-data endpoint. Empty
	// reads in-process.
	AuthDataURL string        `mapstructure:"auth_data_url"`
	CheckoutTTL time.Duration `mapstructure:"checkout_ttl"`
	LedgerTTL   time.Duration `mapstructure:"ledger_ttl"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	ServiceName    string `mapstructure:"service_name"`
}

type PricingConfig struct {
	// File overrides the embedded plans catalogue when set.
	File string `mapstructure:"file"`
	// PriceIDs and PaymentLinks are keyed by plan id and fill in the
	// provider references the catalogue leaves blank.
	PriceIDs     map[string]string `mapstructure:"price_ids"`
	PaymentLinks map[string]string `mapstructure:"payment_links"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit_per_second", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.app_url", "http://localhost:3000")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "rocketstart")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.url", "")

	v.SetDefault("billing.secret_key", "")
	v.SetDefault("billing.webhook_secret", "")
	v.SetDefault("billing.success_path", "/dashboard?payment_success=true")
	v.SetDefault("billing.cancel_path", "/onboarding")

	v.SetDefault("identity.project_url", "")
	v.SetDefault("identity.anon_key", "")
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.session_secret", "")
	v.SetDefault("identity.session_name", "rocketstart_session")
	v.SetDefault("identity.secure_cookies", false)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.auth_data_ttl", 30*time.Second)
	v.SetDefault("cache.auth_data_url", "")
	v.SetDefault("cache.checkout_ttl", time.Hour)
	v.SetDefault("cache.ledger_ttl", 72*time.Hour)
	v.SetDefault("cache.workers", 4)
	v.SetDefault("cache.queue_size", 128)

	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.service_name", "rocketstart-api")

	v.SetDefault("pricing.file", "")
}

// Load reads .env (if present), an optional config file and the environment.
// Environment keys use the section prefix, e.g. DATABASE_HOST or BILLING_WEBHOOK_SECRET.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.AuthDataTTL <= 0 {
		return errors.New("cache.auth_data_ttl must be positive")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port must be positive")
	}
	return nil
}
