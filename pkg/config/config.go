package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "STITCHKART"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "STITCHKART_APP_ENV"
	EnvPort     = "STITCHKART_APP_PORT"
	EnvDBDSN    = "STITCHKART_DB_DSN"
	EnvDBHost   = "STITCHKART_DB_HOST"
	EnvDBUser   = "STITCHKART_DB_USER"
	EnvDBName   = "STITCHKART_DB_NAME"
	EnvRedisURL = "STITCHKART_REDIS_URL"

	EnvJWTSecret  = "STITCHKART_JWT_SECRET"
	EnvJWTIssuer  = "STITCHKART_JWT_ISSUER"
	EnvJWTExpMins = "STITCHKART_JWT_EXPIRATION_MINUTES"

	EnvRazorpayKeyID      = "STITCHKART_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret  = "STITCHKART_RAZORPAY_KEY_SECRET"
	EnvCashfreeAppID      = "STITCHKART_CASHFREE_APP_ID"
	EnvCashfreeSecretKey  = "STITCHKART_CASHFREE_SECRET_KEY"
	EnvShiprocketEmail    = "STITCHKART_SHIPROCKET_EMAIL"
	EnvShiprocketPassword = "STITCHKART_SHIPROCKET_PASSWORD"

	EnvGCPProjectID       = "STITCHKART_GCP_PROJECT_ID"
	EnvPubSubDomainTopic  = "STITCHKART_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSubscr = "STITCHKART_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Payments     PaymentsConfig
	Razorpay     RazorpayConfig
	Cashfree     CashfreeConfig
	Shiprocket   ShiprocketConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STITCHKART_APP_ENV" required:"true"`
	Port         string `envconfig:"STITCHKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STITCHKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STITCHKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STITCHKART_DB_DSN"`
	Driver string `envconfig:"STITCHKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STITCHKART_DB_HOST"`
	LegacyPort     int    `envconfig:"STITCHKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STITCHKART_DB_USER"`
	LegacyPassword string `envconfig:"STITCHKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"STITCHKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"STITCHKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STITCHKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STITCHKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STITCHKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STITCHKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STITCHKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STITCHKART_REDIS_ADDR"`
	Password     string        `envconfig:"STITCHKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"STITCHKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STITCHKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STITCHKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STITCHKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STITCHKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STITCHKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STITCHKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STITCHKART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STITCHKART_JWT_EXPIRATION_MINUTES" required:"true"`
}

// PaymentsConfig holds the bootstrap limits used until an admin-managed
// payment config row exists in the database.
type PaymentsConfig struct {
	MinAmount        decimal.Decimal `envconfig:"STITCHKART_PAYMENTS_MIN_AMOUNT" default:"1"`
	MaxAmount        decimal.Decimal `envconfig:"STITCHKART_PAYMENTS_MAX_AMOUNT" default:"200000"`
	DefaultProvider  string          `envconfig:"STITCHKART_PAYMENTS_DEFAULT_PROVIDER" default:"razorpay"`
	Currency         string          `envconfig:"STITCHKART_PAYMENTS_CURRENCY" default:"INR"`
	CallbackDedupTTL time.Duration   `envconfig:"STITCHKART_PAYMENTS_CALLBACK_DEDUP_TTL" default:"10m"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"STITCHKART_RAZORPAY_KEY_ID"`
	KeySecret     string        `envconfig:"STITCHKART_RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"STITCHKART_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"STITCHKART_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Timeout       time.Duration `envconfig:"STITCHKART_RAZORPAY_TIMEOUT" default:"10s"`
}

type CashfreeConfig struct {
	AppID         string        `envconfig:"STITCHKART_CASHFREE_APP_ID"`
	SecretKey     string        `envconfig:"STITCHKART_CASHFREE_SECRET_KEY"`
	WebhookSecret string        `envconfig:"STITCHKART_CASHFREE_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"STITCHKART_CASHFREE_BASE_URL" default:"https://api.cashfree.com/pg"`
	Timeout       time.Duration `envconfig:"STITCHKART_CASHFREE_TIMEOUT" default:"10s"`
}

type ShiprocketConfig struct {
	Email         string        `envconfig:"STITCHKART_SHIPROCKET_EMAIL"`
	Password      string        `envconfig:"STITCHKART_SHIPROCKET_PASSWORD"`
	BaseURL       string        `envconfig:"STITCHKART_SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	PickupStation string        `envconfig:"STITCHKART_SHIPROCKET_PICKUP_STATION" default:"Primary"`
	Timeout       time.Duration `envconfig:"STITCHKART_SHIPROCKET_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STITCHKART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STITCHKART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STITCHKART_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STITCHKART_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"STITCHKART_PUBSUB_DOMAIN_TOPIC" default:"sk-domain-events"`
	DomainSubscription string `envconfig:"STITCHKART_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STITCHKART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STITCHKART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STITCHKART_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
