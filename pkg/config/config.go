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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	JobService   JobServiceConfig
	Automation   AutomationConfig
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
	if err := cfg.Automation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKROOM_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKROOM_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOCKROOM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKROOM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKROOM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKROOM_DB_DSN"`
	Driver string `envconfig:"STOCKROOM_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOCKROOM_DB_HOST"`
	Port     int    `envconfig:"STOCKROOM_DB_PORT" default:"5432"`
	User     string `envconfig:"STOCKROOM_DB_USER"`
	Password string `envconfig:"STOCKROOM_DB_PASSWORD"`
	Name     string `envconfig:"STOCKROOM_DB_NAME"`
	SSLMode  string `envconfig:"STOCKROOM_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOCKROOM_SQLITE_PATH" default:"stockroom.db"`

	MaxOpenConns    int           `envconfig:"STOCKROOM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKROOM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKROOM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKROOM_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STOCKROOM_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKROOM_REDIS_URL"`
	Address      string        `envconfig:"STOCKROOM_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKROOM_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKROOM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKROOM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKROOM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKROOM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKROOM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKROOM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"STOCKROOM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOCKROOM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOCKROOM_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOCKROOM_AUTO_MIGRATE" default:"false"`
}

type JobServiceConfig struct {
	BaseURL       string        `envconfig:"STOCKROOM_JOB_SERVICE_URL" required:"true"`
	APIKey        string        `envconfig:"STOCKROOM_JOB_SERVICE_API_KEY"`
	Timeout       time.Duration `envconfig:"STOCKROOM_JOB_SERVICE_TIMEOUT" default:"30s"`
	WebhookSecret string        `envconfig:"STOCKROOM_JOB_SERVICE_WEBHOOK_SECRET"`
	// MaxDispatchAttempts bounds retries of transient dispatch failures before
	// an event is marked processed with its failure result.
	MaxDispatchAttempts int    `envconfig:"STOCKROOM_JOB_SERVICE_MAX_DISPATCH_ATTEMPTS" default:"5"`
	SourcePath          string `envconfig:"STOCKROOM_JOB_SERVICE_SOURCE_PATH"`
}

type AutomationConfig struct {
	AutoStart          bool          `envconfig:"STOCKROOM_AUTOMATION_AUTOSTART" default:"false"`
	StockThreshold     int           `envconfig:"STOCKROOM_STOCK_THRESHOLD" default:"10"`
	StockInterval      time.Duration `envconfig:"STOCKROOM_STOCK_MONITOR_INTERVAL" default:"60m"`
	RestockBaseline    int           `envconfig:"STOCKROOM_RESTOCK_BASELINE" default:"100"`
	DrainInterval      time.Duration `envconfig:"STOCKROOM_WEBHOOK_DRAIN_INTERVAL" default:"5m"`
	DrainBatchSize     int           `envconfig:"STOCKROOM_WEBHOOK_DRAIN_BATCH_SIZE" default:"100"`
	ValidationInterval time.Duration `envconfig:"STOCKROOM_VALIDATION_INTERVAL" default:"24h"`
	LockTTL            time.Duration `envconfig:"STOCKROOM_AUTOMATION_LOCK_TTL" default:"10m"`
}

func (a AutomationConfig) validate() error {
	if a.StockThreshold <= 0 {
		return fmt.Errorf("%s must be positive", EnvStockThreshold)
	}
	if a.DrainBatchSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvDrainBatchSize)
	}
	for env, d := range map[string]time.Duration{
		EnvStockInterval:      a.StockInterval,
		EnvDrainInterval:      a.DrainInterval,
		EnvValidationInterval: a.ValidationInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", env)
		}
	}
	return nil
}

type AlertsConfig struct {
	TelegramBotToken string `envconfig:"STOCKROOM_ALERTS_TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"STOCKROOM_ALERTS_TELEGRAM_CHAT_ID"`
	GCPProjectID     string `envconfig:"STOCKROOM_ALERTS_GCP_PROJECT_ID"`
	PubSubTopic      string `envconfig:"STOCKROOM_ALERTS_PUBSUB_TOPIC"`
}

// TelegramEnabled reports whether both telegram settings are present.
func (a AlertsConfig) TelegramEnabled() bool {
	return a.TelegramBotToken != "" && a.TelegramChatID != ""
}

// PubSubEnabled reports whether both pubsub settings are present.
func (a AlertsConfig) PubSubEnabled() bool {
	return a.GCPProjectID != "" && a.PubSubTopic != ""
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsSQLite() {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
