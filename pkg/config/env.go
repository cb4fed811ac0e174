package config

const (
	EnvAppEnv = "APP_ENV"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTTTL    = "JWT_TTL"

	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvCheckoutSuccessURL  = "CHECKOUT_SUCCESS_URL"
	EnvCheckoutCancelURL   = "CHECKOUT_CANCEL_URL"
	EnvPaymentCurrency     = "PAYMENT_CURRENCY"
	EnvPaymentTimeout      = "PAYMENT_TIMEOUT"
	EnvManualConfirmation  = "MANUAL_PAYMENT_CONFIRMATION"

	EnvRedisURL          = "REDIS_URL"
	EnvGuideCacheEnabled = "GUIDE_CACHE_ENABLED"
	EnvGuideCacheTTL     = "GUIDE_CACHE_TTL"

	EnvKafkaEnabled = "KAFKA_ENABLED"
	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvKafkaTopic   = "KAFKA_TOPIC"
	EnvKafkaGroupID = "KAFKA_GROUP_ID"

	EnvSweepInterval     = "SWEEP_INTERVAL"
	EnvSweepTimeout      = "SWEEP_TIMEOUT"
	EnvCancelGracePeriod = "CANCEL_GRACE_PERIOD"
	EnvMaxSentRequests   = "MAX_SENT_REQUESTS"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
