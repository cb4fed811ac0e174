package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	customtourserrors "tourbook/internal/customtours/errors"
	"tourbook/pkg/config"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"
)

const (
	GuideCollectionName = "Guides"
)

// caseInsensitive makes language and governorate matching ignore case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// GuideRepository reads guides for matching and maintains their
// tour_requests back-reference. Adding or removing an id that is already
// present or absent is a no-op.
type GuideRepository interface {
	FindByID(ctx context.Context, id string) (*model.Guide, error)
	FindEligible(ctx context.Context, languages []string, governorate string, ascending bool, limit int, offset int64) ([]*model.Guide, error)
	CountEligible(ctx context.Context, languages []string, governorate string) (int64, error)
	AddTourRequest(ctx context.Context, guideID, requestID string) error
	RemoveTourRequest(ctx context.Context, guideID, requestID string) error
}

type mongoGuideRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoGuideRepository(cfg *config.Config) GuideRepository {
	return &mongoGuideRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(GuideCollectionName),
	}
}

func guideObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: guide %s", customtourserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoGuideRepository) FindByID(ctx context.Context, id string) (*model.Guide, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := guideObjectID(id)
	if err != nil {
		return nil, err
	}

	var guide model.Guide
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&guide); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", customtourserrors.ErrGuideNotFound, id)
		}
		return nil, fmt.Errorf("failed to find guide: %w", err)
	}
	return &guide, nil
}

func eligibleFilter(languages []string, governorate string) bson.M {
	return bson.M{
		"languages":    bson.M{"$all": languages},
		"governorates": governorate,
	}
}

func (r *mongoGuideRepository) FindEligible(ctx context.Context, languages []string, governorate string, ascending bool, limit int, offset int64) ([]*model.Guide, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	direction := -1
	if ascending {
		direction = 1
	}
	opts := options.Find().
		SetCollation(caseInsensitive).
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "rating", Value: direction}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"tour_requests": 0})

	cursor, err := r.collection.Find(ctx, eligibleFilter(languages, governorate), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible guides: %w", err)
	}
	defer cursor.Close(ctx)

	guides := []*model.Guide{}
	if err := cursor.All(ctx, &guides); err != nil {
		return nil, fmt.Errorf("failed to decode guides: %w", err)
	}
	return guides, nil
}

func (r *mongoGuideRepository) CountEligible(ctx context.Context, languages []string, governorate string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, eligibleFilter(languages, governorate),
		options.Count().SetCollation(caseInsensitive))
	if err != nil {
		return 0, fmt.Errorf("failed to count eligible guides: %w", err)
	}
	return count, nil
}

func (r *mongoGuideRepository) updateTourRequests(ctx context.Context, guideID string, update bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := guideObjectID(guideID)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update guide tour requests: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", customtourserrors.ErrGuideNotFound, guideID)
	}
	return nil
}

func (r *mongoGuideRepository) AddTourRequest(ctx context.Context, guideID, requestID string) error {
	return r.updateTourRequests(ctx, guideID, bson.M{"$addToSet": bson.M{"tour_requests": requestID}})
}

func (r *mongoGuideRepository) RemoveTourRequest(ctx context.Context, guideID, requestID string) error {
	return r.updateTourRequests(ctx, guideID, bson.M{"$pull": bson.M{"tour_requests": requestID}})
}
