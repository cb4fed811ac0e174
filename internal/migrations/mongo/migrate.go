package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "tourbook/internal/bookings/repository"
	customtoursrepo "tourbook/internal/customtours/repository"
	"tourbook/internal/migrations/mongo/validators"
	"tourbook/pkg/logger"
)

var (
	CustomizedToursIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "traveler_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "sent_requests", Value: 1}}},
		{Keys: bson.D{{Key: "responding_guides.guide_id", Value: 1}}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "payment_status", Value: 1},
			{Key: "end_date", Value: 1},
		}},
	}

	GuidesIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "governorates", Value: 1},
			{Key: "languages", Value: 1},
			{Key: "rating", Value: -1},
		}},
		{Keys: bson.D{{Key: "tour_requests", Value: 1}}},
	}

	ToursIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "guide_id", Value: 1}}},
	}

	CartsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "traveler_id", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payment_reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("payment_reference_unique"),
		},
		{Keys: bson.D{
			{Key: "traveler_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{{Key: "lines.guide_id", Value: 1}}},
		{Keys: bson.D{
			{Key: "lines.tour_id", Value: 1},
			{Key: "lines.tour_date", Value: 1},
			{Key: "lines.status", Value: 1},
		}},
		{Keys: bson.D{{Key: "lines.customized_tour_id", Value: 1}}},
	}
)

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the services use with its schema
// validator and indexes.
func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		customtoursrepo.CollectionName: {
			Indexes:   CustomizedToursIndexes,
			Validator: validators.CustomizedTourValidator,
		},
		customtoursrepo.GuideCollectionName: {
			Indexes:   GuidesIndexes,
			Validator: validators.GuideValidator,
		},
		bookingsrepo.TourCollectionName: {
			Indexes:   ToursIndexes,
			Validator: validators.TourValidator,
		},
		bookingsrepo.CartCollectionName: {
			Indexes:   CartsIndexes,
			Validator: validators.CartValidator,
		},
		bookingsrepo.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
	}
}

// RunMigration creates missing collections, refreshes their validators and
// ensures indexes. Running it again is harmless.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
