package config

import "time"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	ServiceCustomTours = "customtours"
	ServiceBookings    = "bookings"
	ServiceScheduler   = "scheduler"
	ServiceReconciler  = "reconciler"
	ServiceMigrate     = "migrate"
)

const (
	DefaultAppEnv = EnvProduction

	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "tourbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultJWTTTL = 24 * time.Hour

	DefaultCheckoutSuccessURL = "http://localhost:8081/api/v1/bookings/create?session_id={CHECKOUT_SESSION_ID}"
	DefaultCheckoutCancelURL  = "http://localhost:3000/checkout/cancelled"
	DefaultPaymentCurrency    = "egp"
	DefaultPaymentTimeout     = 10 * time.Second

	DefaultRedisURL      = "redis://localhost:6379/0"
	DefaultGuideCacheTTL = 2 * time.Minute

	DefaultKafkaBrokers = "localhost:9092"
	DefaultKafkaTopic   = "tourbook.negotiation.events"
	DefaultKafkaGroupID = "tourbook-reconciler"

	DefaultSweepInterval     = 24 * time.Hour
	DefaultSweepTimeout      = 5 * time.Minute
	DefaultCancelGracePeriod = 24 * time.Hour
	DefaultMaxSentRequests   = 50

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
	MinPaginationLimit     = 10
)
