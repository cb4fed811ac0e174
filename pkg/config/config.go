package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tourbook/pkg/client"
	"tourbook/pkg/logger"
)

type Config struct {
	ServiceName string
	AppEnv      string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	JWTSecret string
	JWTTTL    time.Duration

	StripeSecretKey           string
	StripeWebhookSecret       string
	CheckoutSuccessURL        string
	CheckoutCancelURL         string
	PaymentCurrency           string
	PaymentTimeout            time.Duration
	ManualPaymentConfirmation bool

	RedisURL          string
	GuideCacheEnabled bool
	GuideCacheTTL     time.Duration

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	SweepInterval     time.Duration
	SweepTimeout      time.Duration
	CancelGracePeriod time.Duration
	MaxSentRequests   int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads a .env file when present, then the process environment, and
// exits the process if the resulting configuration is invalid.
func Load(serviceName string) *Config {
	envFileErr := godotenv.Load()

	appEnv := getEnvStr(EnvAppEnv, DefaultAppEnv)
	cfg := &Config{
		ServiceName: serviceName,
		AppEnv:      appEnv,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),
		JWTTTL:    getEnvDuration(EnvJWTTTL, DefaultJWTTTL),

		StripeSecretKey:           getEnvStr(EnvStripeSecretKey, ""),
		StripeWebhookSecret:       getEnvStr(EnvStripeWebhookSecret, ""),
		CheckoutSuccessURL:        getEnvStr(EnvCheckoutSuccessURL, DefaultCheckoutSuccessURL),
		CheckoutCancelURL:         getEnvStr(EnvCheckoutCancelURL, DefaultCheckoutCancelURL),
		PaymentCurrency:           strings.ToLower(getEnvStr(EnvPaymentCurrency, DefaultPaymentCurrency)),
		PaymentTimeout:            getEnvDuration(EnvPaymentTimeout, DefaultPaymentTimeout),
		ManualPaymentConfirmation: getEnvBool(EnvManualConfirmation, appEnv != EnvProduction),

		RedisURL:          getEnvStr(EnvRedisURL, DefaultRedisURL),
		GuideCacheEnabled: getEnvBool(EnvGuideCacheEnabled, false),
		GuideCacheTTL:     getEnvDuration(EnvGuideCacheTTL, DefaultGuideCacheTTL),

		KafkaEnabled: getEnvBool(EnvKafkaEnabled, false),
		KafkaBrokers: getEnvList(EnvKafkaBrokers, DefaultKafkaBrokers),
		KafkaTopic:   getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),
		KafkaGroupID: getEnvStr(EnvKafkaGroupID, DefaultKafkaGroupID),

		SweepInterval:     getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweepTimeout:      getEnvDuration(EnvSweepTimeout, DefaultSweepTimeout),
		CancelGracePeriod: getEnvDuration(EnvCancelGracePeriod, DefaultCancelGracePeriod),
		MaxSentRequests:   getEnvNum(EnvMaxSentRequests, DefaultMaxSentRequests),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if envFileErr != nil {
		cfg.Log.Debug("No .env file loaded, using process environment")
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) IsDevelopment() bool {
	return cfg.AppEnv == EnvDevelopment
}

func (cfg *Config) IsProduction() bool {
	return cfg.AppEnv == EnvProduction
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects the guide cache backend. It is a no-op when the cache
// is disabled.
func (cfg *Config) SetRedis() {
	if !cfg.GuideCacheEnabled {
		cfg.Log.Info("Guide cache disabled, skipping Redis connection")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if cfg.AppEnv != EnvProduction && cfg.AppEnv != EnvDevelopment && cfg.AppEnv != "staging" {
		errors = append(errors, fmt.Sprintf("AppEnv must be one of production, staging, development, got: %s", cfg.AppEnv))
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if cfg.servesHTTP() && len(cfg.JWTSecret) < 16 {
		errors = append(errors, "JWTSecret must be set and at least 16 characters long")
	}

	if cfg.ServiceName == ServiceBookings {
		if cfg.StripeSecretKey == "" {
			errors = append(errors, "StripeSecretKey cannot be empty")
		}
		if cfg.StripeWebhookSecret == "" {
			errors = append(errors, "StripeWebhookSecret cannot be empty")
		}
		for name, raw := range map[string]string{"CheckoutSuccessURL": cfg.CheckoutSuccessURL, "CheckoutCancelURL": cfg.CheckoutCancelURL} {
			if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("%s must be an absolute URL, got: %s", name, raw))
			}
		}
		if cfg.ManualPaymentConfirmation && cfg.IsProduction() {
			errors = append(errors, "ManualPaymentConfirmation cannot be enabled in production")
		}
	}
	if cfg.PaymentTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PaymentTimeout must be positive, got: %s", cfg.PaymentTimeout))
	}

	if cfg.GuideCacheEnabled {
		if _, err := url.Parse(cfg.RedisURL); err != nil || !strings.HasPrefix(cfg.RedisURL, "redis") {
			errors = append(errors, fmt.Sprintf("RedisURL must start with 'redis://' or 'rediss://' when the guide cache is enabled, got: %s", cfg.RedisURL))
		}
		if cfg.GuideCacheTTL <= 0 {
			errors = append(errors, fmt.Sprintf("GuideCacheTTL must be positive, got: %s", cfg.GuideCacheTTL))
		}
	}

	if (cfg.KafkaEnabled || cfg.ServiceName == ServiceReconciler) && len(cfg.KafkaBrokers) == 0 {
		errors = append(errors, "KafkaBrokers cannot be empty when Kafka is enabled")
	}
	if cfg.KafkaTopic == "" {
		errors = append(errors, "KafkaTopic cannot be empty")
	}

	if cfg.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval must be positive, got: %s", cfg.SweepInterval))
	}
	if cfg.SweepTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("SweepTimeout must be positive, got: %s", cfg.SweepTimeout))
	}
	if cfg.CancelGracePeriod <= 0 {
		errors = append(errors, fmt.Sprintf("CancelGracePeriod must be positive, got: %s", cfg.CancelGracePeriod))
	}
	if cfg.MaxSentRequests <= 0 {
		errors = append(errors, fmt.Sprintf("MaxSentRequests must be positive, got: %d", cfg.MaxSentRequests))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) servesHTTP() bool {
	return cfg.ServiceName == ServiceCustomTours || cfg.ServiceName == ServiceBookings
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"app_env", cfg.AppEnv,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"stripe_key_set", cfg.StripeSecretKey != "",
		"stripe_webhook_secret_set", cfg.StripeWebhookSecret != "",
		"payment_currency", cfg.PaymentCurrency,
		"payment_timeout", cfg.PaymentTimeout,
		"manual_payment_confirmation", cfg.ManualPaymentConfirmation,
		"guide_cache_enabled", cfg.GuideCacheEnabled,
		"guide_cache_ttl", cfg.GuideCacheTTL,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_topic", cfg.KafkaTopic,
		"sweep_interval", cfg.SweepInterval,
		"cancel_grace_period", cfg.CancelGracePeriod,
		"max_sent_requests", cfg.MaxSentRequests,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnvStr(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = MinPaginationLimit
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
