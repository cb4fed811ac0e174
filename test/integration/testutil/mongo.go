//go:build integration

package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "tourbook/internal/bookings/repository"
	customtoursrepo "tourbook/internal/customtours/repository"
	"tourbook/pkg/model"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "tourbook_integration"
	ConnectionTimeout   = 10 * time.Second
)

// MongoHelper seeds and inspects the database behind the services under
// test. Guides, tours and carts are owned by other systems, so tests insert
// them directly.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
		DBName:   dbName,
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// CleanDatabase empties every collection but keeps them, so the validators
// and indexes installed by the migrator survive between tests.
func (m *MongoHelper) CleanDatabase(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collections, err := m.Database.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("failed to list collections: %v", err)
	}

	for _, name := range collections {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean collection %s: %v", name, err)
		}
	}
}

func (m *MongoHelper) insert(t *testing.T, collection string, doc bson.M) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	oid := primitive.NewObjectID()
	doc["_id"] = oid
	if _, err := m.Database.Collection(collection).InsertOne(ctx, doc); err != nil {
		t.Fatalf("failed to seed %s: %v", collection, err)
	}
	return oid.Hex()
}

func (m *MongoHelper) SeedGuide(t *testing.T, g model.Guide) string {
	t.Helper()
	return m.insert(t, customtoursrepo.GuideCollectionName, bson.M{
		"name":             g.Name,
		"languages":        g.Languages,
		"governorates":     g.Governorates,
		"rating":           g.Rating,
		"ratings_quantity": g.RatingsQuantity,
		"is_verified":      g.IsVerified,
		"tour_requests":    []string{},
	})
}

func (m *MongoHelper) SeedTour(t *testing.T, tour model.Tour) string {
	t.Helper()
	return m.insert(t, bookingsrepo.TourCollectionName, bson.M{
		"name":           tour.Name,
		"price":          tour.Price,
		"duration":       tour.Duration,
		"max_group_size": tour.MaxGroupSize,
		"start_days":     tour.StartDays,
		"guide_id":       tour.GuideID,
		"bookings":       tour.Bookings,
	})
}

func (m *MongoHelper) SeedCart(t *testing.T, cart model.Cart) string {
	t.Helper()
	return m.insert(t, bookingsrepo.CartCollectionName, bson.M{
		"traveler_id": cart.TravelerID,
		"items":       cart.Items,
		"total_price": cart.TotalPrice,
	})
}

func (m *MongoHelper) SeedCustomizedTour(t *testing.T, req model.CustomizedTourRequest) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req.ID = ""
	result, err := m.Database.Collection(customtoursrepo.CollectionName).InsertOne(ctx, req)
	if err != nil {
		t.Fatalf("failed to seed customized tour: %v", err)
	}
	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		t.Fatalf("unexpected inserted id %T", result.InsertedID)
	}
	return oid.Hex()
}

// Guide reads a guide back, including its tour_requests back-reference.
func (m *MongoHelper) Guide(t *testing.T, id string) *model.Guide {
	t.Helper()
	return findByHex[model.Guide](t, m.Database.Collection(customtoursrepo.GuideCollectionName), id)
}

func (m *MongoHelper) Tour(t *testing.T, id string) *model.Tour {
	t.Helper()
	return findByHex[model.Tour](t, m.Database.Collection(bookingsrepo.TourCollectionName), id)
}

// SetRequestFields patches a customized tour request directly, for states
// the API cannot reach without a payment provider.
func (m *MongoHelper) SetRequestFields(t *testing.T, id string, fields bson.M) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		t.Fatalf("invalid request id %q: %v", id, err)
	}
	coll := m.Database.Collection(customtoursrepo.CollectionName)
	if _, err := coll.UpdateByID(ctx, oid, bson.M{"$set": fields}); err != nil {
		t.Fatalf("failed to update request %s: %v", id, err)
	}
}

func (m *MongoHelper) CountDocuments(t *testing.T, collectionName string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(collectionName).CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collectionName, err)
	}
	return count
}

func findByHex[T any](t *testing.T, coll *mongo.Collection, id string) *T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		t.Fatalf("invalid id %q: %v", id, err)
	}
	var out T
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&out); err != nil {
		t.Fatalf("failed to load %s from %s: %v", id, coll.Name(), err)
	}
	return &out
}
