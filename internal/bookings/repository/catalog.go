package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "tourbook/internal/bookings/errors"
	"tourbook/pkg/config"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"
)

const (
	TourCollectionName = "Tours"
	CartCollectionName = "Carts"
)

type TourRepository interface {
	FindByID(ctx context.Context, id string) (*model.Tour, error)
	IncrementBookings(ctx context.Context, id string, n int) error
}

type mongoTourRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTourRepository(cfg *config.Config) TourRepository {
	return &mongoTourRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(TourCollectionName),
	}
}

func (r *mongoTourRepository) FindByID(ctx context.Context, id string) (*model.Tour, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var tour model.Tour
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&tour); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrTourNotFound, id)
		}
		return nil, fmt.Errorf("failed to find tour: %w", err)
	}
	return &tour, nil
}

func (r *mongoTourRepository) IncrementBookings(ctx context.Context, id string, n int) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"bookings": n}})
	if err != nil {
		return fmt.Errorf("failed to increment bookings of tour %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", bookingserrors.ErrTourNotFound, id)
	}
	return nil
}

type CartRepository interface {
	FindByID(ctx context.Context, id string) (*model.Cart, error)
	Delete(ctx context.Context, id string) error
}

type mongoCartRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCartRepository(cfg *config.Config) CartRepository {
	return &mongoCartRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CartCollectionName),
	}
}

func (r *mongoCartRepository) FindByID(ctx context.Context, id string) (*model.Cart, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var cart model.Cart
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrCartNotFound, id)
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}
	return &cart, nil
}

// Delete is idempotent: deleting a missing cart is not an error.
func (r *mongoCartRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("failed to delete cart %s: %w", id, err)
	}
	return nil
}
