package main

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tourbook/internal/bookings/handler"
	"tourbook/internal/bookings/repository"
	"tourbook/internal/bookings/service"
	"tourbook/internal/bookings/validator"
	customtoursrepo "tourbook/internal/customtours/repository"
	"tourbook/internal/events"
	"tourbook/internal/health"
	"tourbook/internal/payments"
	"tourbook/pkg/app"
	"tourbook/pkg/auth"
	"tourbook/pkg/config"
)

func main() {
	cfg := config.Load(config.ServiceBookings)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.SetMongo()

	publisher, closePublisher, err := events.NewPublisherFromConfig(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event publisher", "error", err)
	}
	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Log)

	cfg.Log.Info("Starting Bookings service")
	bookingService := initServices(cfg, gateway, publisher)

	router := handler.NewRouter(
		handler.NewBookingHandler(
			bookingService,
			auth.NewGuard(auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL)),
			cfg.ManualPaymentConfirmation,
			cfg.Log,
		),
		handler.NewWebhookHandler(bookingService, gateway, cfg.Log),
	)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, healthChecks(cfg), router)
	serverApp.OnShutdown(closePublisher)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initServices(cfg *config.Config, gateway payments.Gateway, publisher events.Publisher) service.BookingService {
	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		repository.NewMongoTourRepository(cfg),
		repository.NewMongoCartRepository(cfg),
		customtoursrepo.NewMongoCustomizedTourRepository(cfg),
		gateway,
		validator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized",
		"database", cfg.MongoDatabaseName,
		"currency", cfg.PaymentCurrency,
		"manual_payment_confirmation", cfg.ManualPaymentConfirmation,
	)
	return bookingService
}

func healthChecks(cfg *config.Config) map[string]health.Pinger {
	return map[string]health.Pinger{
		"mongo": health.PingFunc(func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, readpref.Primary())
		}),
	}
}
