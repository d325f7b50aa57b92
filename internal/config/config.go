package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// Configuration is the root config object, loaded once at startup and
// injected everywhere else.
type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Coalesce   CoalesceConfig   `mapstructure:"coalesce"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DeploymentConfig struct {
	Mode string `mapstructure:"mode"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// BillingConfig holds the Stripe credentials and the authoritative
// price-to-plan mapping. An external price reference missing from PricePlans
// is a hard error during reconciliation, not a guess.
type BillingConfig struct {
	SecretKey             string            `mapstructure:"secret_key"`
	WebhookSecret         string            `mapstructure:"webhook_secret"`
	APIBaseURL            string            `mapstructure:"api_base_url"`
	FinalAttemptThreshold int               `mapstructure:"final_attempt_threshold"`
	PricePlans            map[string]string `mapstructure:"price_plans"`
}

// PlanForPrice resolves a provider price reference to a plan slug.
func (c BillingConfig) PlanForPrice(priceID string) (types.PlanSlug, bool) {
	slug, ok := c.PricePlans[priceID]
	if !ok {
		return "", false
	}
	plan := types.PlanSlug(slug)
	if !plan.Valid() {
		return "", false
	}
	return plan, true
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// CoalesceConfig tunes the client-facing sync coalescing layer.
type CoalesceConfig struct {
	Delay           time.Duration `mapstructure:"delay"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	RateLimitCalls  int           `mapstructure:"rate_limit_calls"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// NewConfig loads configuration from config.yaml and the environment.
// Environment variables use the PSIFLOW_ prefix with underscores, e.g.
// PSIFLOW_BILLING_SECRET_KEY.
func NewConfig() (*Configuration, error) {
	// Best effort; a missing .env file is fine in production.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("psiflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read config file").
				Mark(ierr.ErrSystem)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal configuration").
			Mark(ierr.ErrSystem)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", "api")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("billing.api_base_url", "https://api.stripe.com")
	v.SetDefault("billing.final_attempt_threshold", 3)
	v.SetDefault("coalesce.delay", 300*time.Millisecond)
	v.SetDefault("coalesce.max_wait", 2*time.Second)
	v.SetDefault("coalesce.rate_limit_calls", 10)
	v.SetDefault("coalesce.rate_limit_window", time.Minute)
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("logging.level", "info")
}

// GetDefaultConfig returns a config suitable for tests and scripts.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: "test"},
		Server:     ServerConfig{Address: ":8080"},
		Cache:      CacheConfig{Enabled: true},
		Billing: BillingConfig{
			APIBaseURL:            "https://api.stripe.com",
			FinalAttemptThreshold: 3,
			PricePlans: map[string]string{
				"price_gestao_monthly":      string(types.PlanGestao),
				"price_psi_regular_monthly": string(types.PlanPsiRegular),
			},
		},
		Coalesce: CoalesceConfig{
			Delay:           10 * time.Millisecond,
			MaxWait:         100 * time.Millisecond,
			RateLimitCalls:  10,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{Level: "debug"},
	}
}
