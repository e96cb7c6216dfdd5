package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CREATORKIT_APP_ENV" required:"true"`
	Port         string `envconfig:"CREATORKIT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CREATORKIT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CREATORKIT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CREATORKIT_DB_DSN"`
	Driver string `envconfig:"CREATORKIT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CREATORKIT_DB_HOST"`
	LegacyPort     int    `envconfig:"CREATORKIT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CREATORKIT_DB_USER"`
	LegacyPassword string `envconfig:"CREATORKIT_DB_PASSWORD"`
	LegacyName     string `envconfig:"CREATORKIT_DB_NAME"`
	LegacySSLMode  string `envconfig:"CREATORKIT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CREATORKIT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CREATORKIT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CREATORKIT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREATORKIT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CREATORKIT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CREATORKIT_REDIS_ADDR"`
	Password     string        `envconfig:"CREATORKIT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREATORKIT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREATORKIT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CREATORKIT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CREATORKIT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREATORKIT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREATORKIT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"CREATORKIT_STRIPE_API_KEY"`
	Secret string `envconfig:"CREATORKIT_STRIPE_SECRET"`
	Env    string `envconfig:"CREATORKIT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	SuccessURL     string        `envconfig:"CREATORKIT_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL      string        `envconfig:"CREATORKIT_CHECKOUT_CANCEL_URL" required:"true"`
	GatewayTimeout time.Duration `envconfig:"CREATORKIT_CHECKOUT_GATEWAY_TIMEOUT" default:"10s"`
	Currency       string        `envconfig:"CREATORKIT_CHECKOUT_CURRENCY" default:"usd"`
}

func (c CheckoutConfig) validate() error {
	for name, raw := range map[string]string{
		EnvCheckoutSuccessURL: c.SuccessURL,
		EnvCheckoutCancelURL:  c.CancelURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvCheckoutGatewayTimeout)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CREATORKIT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
