package main

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	bookingsrepo "tourbook/internal/bookings/repository"
	"tourbook/internal/customtours/cache"
	"tourbook/internal/customtours/handler"
	"tourbook/internal/customtours/repository"
	"tourbook/internal/customtours/service"
	"tourbook/internal/customtours/validator"
	"tourbook/internal/events"
	"tourbook/internal/health"
	"tourbook/pkg/app"
	"tourbook/pkg/auth"
	"tourbook/pkg/config"
)

func main() {
	cfg := config.Load(config.ServiceCustomTours)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.SetMongo()
	cfg.SetRedis()

	publisher, closePublisher, err := events.NewPublisherFromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event publisher", "error", err)
	}

	cfg.Log.Info("Starting Customized Tours service")
	customTourService := initServices(cfg, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, healthChecks(cfg), handler.NewCustomizedTourHandler(
		customTourService,
		auth.NewGuard(auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL)),
		cfg.Log,
	))
	serverApp.OnShutdown(closePublisher)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.CustomizedTourService {
	customTourService := service.NewCustomizedTourService(
		repository.NewMongoCustomizedTourRepository(cfg),
		repository.NewMongoGuideRepository(cfg),
		validator.NewCustomizedTourValidator(cfg.Log),
		cache.New(cfg.GuideCacheEnabled, cfg.Client.Redis, cfg.GuideCacheTTL, cfg.Log),
		publisher,
		bookingsrepo.NewMongoBookingRepository(cfg),
		cfg,
	)

	cfg.Log.Info("Customized tour service initialized",
		"database", cfg.MongoDatabaseName,
		"guide_cache", cfg.GuideCacheEnabled && cfg.Client.Redis != nil,
		"kafka_events", cfg.KafkaEnabled,
	)
	return customTourService
}

func healthChecks(cfg *config.Config) map[string]health.Pinger {
	checks := map[string]health.Pinger{
		"mongo": health.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, readpref.Primary())
		}),
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		})
	}
	return checks
}
