package main

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tourbook/internal/customtours/cache"
	"tourbook/internal/customtours/repository"
	"tourbook/internal/customtours/service"
	"tourbook/internal/customtours/validator"
	"tourbook/internal/events"
	"tourbook/internal/health"
	"tourbook/internal/jobs"
	"tourbook/pkg/app"
	"tourbook/pkg/config"
)

// The scheduler serves only /health and /ready next to the sweep worker.
func main() {
	cfg := config.Load(config.ServiceScheduler)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.SetMongo()

	publisher, closePublisher, err := events.NewPublisherFromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event publisher", "error", err)
	}

	customTourService := service.NewCustomizedTourService(
		repository.NewMongoCustomizedTourRepository(cfg),
		repository.NewMongoGuideRepository(cfg),
		validator.NewCustomizedTourValidator(cfg.Log),
		cache.NewNoopGuideCache(),
		publisher,
		nil,
		cfg,
	)

	cfg.Log.Info("Starting completion scheduler")
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, map[string]health.Pinger{
		"mongo": health.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, readpref.Primary())
		}),
	}, nil)
	serverApp.AddWorker(jobs.NewCompletionSweeper(customTourService, cfg.SweepInterval, cfg.SweepTimeout, cfg.Log))
	serverApp.OnShutdown(closePublisher)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}
