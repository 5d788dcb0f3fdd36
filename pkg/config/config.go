package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "OPTICORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Alerts       AlertsConfig
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
	Env          string `envconfig:"OPTICORE_APP_ENV" required:"true"`
	Port         string `envconfig:"OPTICORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"OPTICORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"OPTICORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"OPTICORE_DB_DSN"`
	Driver string `envconfig:"OPTICORE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"OPTICORE_DB_HOST"`
	Port     int    `envconfig:"OPTICORE_DB_PORT" default:"5432"`
	User     string `envconfig:"OPTICORE_DB_USER"`
	Password string `envconfig:"OPTICORE_DB_PASSWORD"`
	Name     string `envconfig:"OPTICORE_DB_NAME"`
	SSLMode  string `envconfig:"OPTICORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"OPTICORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OPTICORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OPTICORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OPTICORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"OPTICORE_REDIS_URL"`
	Address      string        `envconfig:"OPTICORE_REDIS_ADDR"`
	Password     string        `envconfig:"OPTICORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"OPTICORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OPTICORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OPTICORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OPTICORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OPTICORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OPTICORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"OPTICORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"OPTICORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"OPTICORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"OPTICORE_AUTO_MIGRATE" default:"false"`
}

type AlertsConfig struct {
	ExpiryWindowDays int           `envconfig:"OPTICORE_ALERTS_EXPIRY_WINDOW_DAYS" default:"30"`
	Interval         time.Duration `envconfig:"OPTICORE_ALERTS_INTERVAL" default:"15m"`
	MetricsPort      string        `envconfig:"OPTICORE_ALERTS_METRICS_PORT" default:"9108"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"OPTICORE_DB_HOST": db.Host,
		"OPTICORE_DB_USER": db.User,
		"OPTICORE_DB_NAME": db.Name,
	}
	for _, key := range []string{"OPTICORE_DB_HOST", "OPTICORE_DB_USER", "OPTICORE_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either OPTICORE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
