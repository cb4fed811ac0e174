package main

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	bookingsrepo "tourbook/internal/bookings/repository"
	customtoursrepo "tourbook/internal/customtours/repository"
	"tourbook/internal/events"
	"tourbook/internal/health"
	"tourbook/pkg/app"
	"tourbook/pkg/config"
)

// The reconciler consumes negotiation events and replays guide index
// removals and booking line cancellations.
func main() {
	cfg := config.Load(config.ServiceReconciler)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.SetMongo()

	reconciler := events.NewReconciler(
		customtoursrepo.NewMongoGuideRepository(cfg),
		bookingsrepo.NewMongoBookingRepository(cfg),
		cfg.Log,
	)
	worker, err := events.NewReconcilerWorker(cfg, reconciler)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event consumer", "error", err)
	}

	cfg.Log.Info("Starting reconciler",
		"topic", cfg.KafkaTopic,
		"group_id", cfg.KafkaGroupID,
		"dlq_topic", events.DLQTopic(cfg),
	)
	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, map[string]health.Pinger{
		"mongo": health.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, readpref.Primary())
		}),
	}, nil)
	serverApp.AddWorker(worker)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}
