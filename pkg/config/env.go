package config

const (
	EnvPrefix = "STOCKROOM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "STOCKROOM_APP_ENV"
	EnvPort     = "STOCKROOM_APP_PORT"
	EnvLogLevel = "STOCKROOM_LOG_LEVEL"

	EnvDBDSN  = "STOCKROOM_DB_DSN"
	EnvDBHost = "STOCKROOM_DB_HOST"
	EnvDBUser = "STOCKROOM_DB_USER"
	EnvDBName = "STOCKROOM_DB_NAME"

	EnvRedisURL = "STOCKROOM_REDIS_URL"

	EnvJWTSecret = "STOCKROOM_JWT_SECRET"
	EnvJWTIssuer = "STOCKROOM_JWT_ISSUER"

	EnvDBDriver = "STOCKROOM_DB_DRIVER"

	EnvJobServiceURL     = "STOCKROOM_JOB_SERVICE_URL"
	EnvJobServiceAPIKey  = "STOCKROOM_JOB_SERVICE_API_KEY"
	EnvJobServiceTimeout = "STOCKROOM_JOB_SERVICE_TIMEOUT"
	EnvWebhookSecret     = "STOCKROOM_JOB_SERVICE_WEBHOOK_SECRET"

	EnvStockThreshold     = "STOCKROOM_STOCK_THRESHOLD"
	EnvStockInterval      = "STOCKROOM_STOCK_MONITOR_INTERVAL"
	EnvDrainInterval      = "STOCKROOM_WEBHOOK_DRAIN_INTERVAL"
	EnvDrainBatchSize     = "STOCKROOM_WEBHOOK_DRAIN_BATCH_SIZE"
	EnvValidationInterval = "STOCKROOM_VALIDATION_INTERVAL"

	EnvTelegramBotToken = "STOCKROOM_ALERTS_TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "STOCKROOM_ALERTS_TELEGRAM_CHAT_ID"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
