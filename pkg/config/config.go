package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "salapay"

	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"

	EnvDBDSN  = "SALAPAY_DB_DSN"
	EnvDBHost = "SALAPAY_DB_HOST"
	EnvDBUser = "SALAPAY_DB_USER"
	EnvDBName = "SALAPAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Payway       PaywayConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
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
	Env          string `envconfig:"SALAPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"SALAPAY_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"SALAPAY_APP_BASE_URL" default:"http://localhost:8080"`
	LogLevel     string `envconfig:"SALAPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SALAPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

func (a AppConfig) IsStaging() bool {
	return strings.EqualFold(a.Env, AppEnvStaging)
}

type ServiceConfig struct {
	Kind string `envconfig:"SALAPAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SALAPAY_DB_DSN"`
	Driver string `envconfig:"SALAPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SALAPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"SALAPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SALAPAY_DB_USER"`
	LegacyPassword string `envconfig:"SALAPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"SALAPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"SALAPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SALAPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SALAPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SALAPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SALAPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SALAPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SALAPAY_REDIS_ADDR"`
	Password     string        `envconfig:"SALAPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"SALAPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SALAPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SALAPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SALAPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SALAPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SALAPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaywayConfig carries the PayWay merchant credentials and wire endpoints.
type PaywayConfig struct {
	APIKey              string        `envconfig:"SALAPAY_PAYWAY_API_KEY" required:"true"`
	MerchantID          string        `envconfig:"SALAPAY_PAYWAY_MERCHANT_ID" required:"true"`
	PurchaseURL         string        `envconfig:"SALAPAY_PAYWAY_PURCHASE_URL" required:"true"`
	CheckTransactionURL string        `envconfig:"SALAPAY_PAYWAY_CHECK_TRANSACTION_URL" required:"true"`
	PaymentOption       string        `envconfig:"SALAPAY_PAYWAY_PAYMENT_OPTION" default:"abapay"`
	QRExpiry            time.Duration `envconfig:"SALAPAY_PAYWAY_QR_EXPIRY" default:"15m"`
	RequestTimeout      time.Duration `envconfig:"SALAPAY_PAYWAY_REQUEST_TIMEOUT" default:"30s"`
	WebhookPath         string        `envconfig:"SALAPAY_PAYWAY_WEBHOOK_PATH" default:"/api/payway/webhook"`
	ContinueSuccessPath string        `envconfig:"SALAPAY_PAYWAY_CONTINUE_SUCCESS_PATH" default:"/payment/success"`
	TunnelURL           string        `envconfig:"SALAPAY_PAYWAY_TUNNEL_URL"`

	// AckAlwaysSuccess keeps the gateway from retrying deliveries we cannot
	// process deterministically. When false, internal failures return 500 so
	// the gateway redelivers.
	AckAlwaysSuccess bool `envconfig:"SALAPAY_PAYWAY_ACK_ALWAYS_SUCCESS" default:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SALAPAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SALAPAY_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SALAPAY_CRON_INTERVAL" default:"1h"`
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
