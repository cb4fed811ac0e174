package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

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
	CollectionName = "Customized_tours"
)

// Party identifies who confirms completion of a tour.
type Party string

const (
	PartyGuide Party = "guide"
	PartyUser  Party = "user"
)

// CustomizedTourRepository persists customized tour requests. Every method
// that changes status or negotiation arrays is a single conditional update
// and returns ErrConditionFailed when the precondition no longer holds.
type CustomizedTourRepository interface {
	Create(ctx context.Context, req *model.CustomizedTourRequest) error
	FindByID(ctx context.Context, id string) (*model.CustomizedTourRequest, error)
	FindAll(ctx context.Context, filter model.CustomizedTourFilter, limit int, offset int64) ([]*model.CustomizedTourRequest, error)
	Count(ctx context.Context, filter model.CustomizedTourFilter) (int64, error)
	Delete(ctx context.Context, id string) error

	AddInvitation(ctx context.Context, id, travelerID, guideID string, maxSent int) error
	RemoveInvitation(ctx context.Context, id, travelerID, guideID string) error
	AddBid(ctx context.Context, id string, bid model.GuideBid) error
	RejectBid(ctx context.Context, id, travelerID, guideID string) error
	AcceptBid(ctx context.Context, id, travelerID string, bid model.GuideBid) (*model.CustomizedTourRequest, error)
	Cancel(ctx context.Context, id, travelerID string, confirmedSince time.Time) (*model.CustomizedTourRequest, error)

	SetCompletionFlag(ctx context.Context, id string, party Party, partyID string, now time.Time) (*model.CustomizedTourRequest, error)
	Complete(ctx context.Context, id string, now time.Time) error
	MarkPaid(ctx context.Context, id string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoCustomizedTourRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoCustomizedTourRepository(cfg *config.Config) CustomizedTourRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCustomizedTourRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoCustomizedTourRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", customtourserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (r *mongoCustomizedTourRepository) Create(ctx context.Context, req *model.CustomizedTourRequest) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	ts := now()
	req.CreatedAt = ts
	req.UpdatedAt = ts
	if req.SentRequests == nil {
		req.SentRequests = []string{}
	}
	if req.RespondingGuides == nil {
		req.RespondingGuides = []model.GuideBid{}
	}

	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create customized tour: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		req.ID = oid.Hex()
	}

	return nil
}

func (r *mongoCustomizedTourRepository) FindByID(ctx context.Context, id string) (*model.CustomizedTourRequest, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var req model.CustomizedTourRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", customtourserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find customized tour: %w", err)
	}
	return &req, nil
}

func filterToBSON(f model.CustomizedTourFilter) bson.M {
	q := bson.M{}
	if f.TravelerID != "" {
		q["traveler_id"] = f.TravelerID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.InvolvedGuide != "" {
		q["$or"] = bson.A{
			bson.M{"sent_requests": f.InvolvedGuide},
			bson.M{"responding_guides.guide_id": f.InvolvedGuide},
		}
	}
	return q
}

func (r *mongoCustomizedTourRepository) FindAll(ctx context.Context, filter model.CustomizedTourFilter, limit int, offset int64) ([]*model.CustomizedTourRequest, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filterToBSON(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query customized tours: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []*model.CustomizedTourRequest{}
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode customized tours: %w", err)
	}

	return requests, nil
}

func (r *mongoCustomizedTourRepository) Count(ctx context.Context, filter model.CustomizedTourFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filterToBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count customized tours: %w", err)
	}
	return count, nil
}

func (r *mongoCustomizedTourRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete customized tour: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", customtourserrors.ErrNotFound, id)
	}

	return nil
}

// updateOne applies update when filter matches and maps a miss to
// ErrConditionFailed.
func (r *mongoCustomizedTourRepository) updateOne(ctx context.Context, op string, filter, update bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if result.MatchedCount == 0 {
		return customtourserrors.ErrConditionFailed
	}
	return nil
}

// findOneAndUpdate returns the document as it was before or after update,
// depending on returnDoc.
func (r *mongoCustomizedTourRepository) findOneAndUpdate(ctx context.Context, op string, filter, update bson.M, returnDoc options.ReturnDocument) (*model.CustomizedTourRequest, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(returnDoc)

	var doc model.CustomizedTourRequest
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, customtourserrors.ErrConditionFailed
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return &doc, nil
}

func (r *mongoCustomizedTourRepository) AddInvitation(ctx context.Context, id, travelerID, guideID string, maxSent int) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":                        oid,
		"traveler_id":                travelerID,
		"status":                     model.StatusPending,
		"sent_requests":              bson.M{"$ne": guideID},
		"responding_guides.guide_id": bson.M{"$ne": guideID},
	}
	if maxSent > 0 {
		filter[fmt.Sprintf("sent_requests.%d", maxSent-1)] = bson.M{"$exists": false}
	}
	update := bson.M{
		"$addToSet": bson.M{"sent_requests": guideID},
		"$set":      bson.M{"updated_at": now()},
	}
	return r.updateOne(ctx, "add invitation", filter, update)
}

func (r *mongoCustomizedTourRepository) RemoveInvitation(ctx context.Context, id, travelerID, guideID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":           oid,
		"traveler_id":   travelerID,
		"status":        model.StatusPending,
		"sent_requests": guideID,
	}
	update := bson.M{
		"$pull": bson.M{"sent_requests": guideID},
		"$set":  bson.M{"updated_at": now()},
	}
	return r.updateOne(ctx, "remove invitation", filter, update)
}

func (r *mongoCustomizedTourRepository) AddBid(ctx context.Context, id string, bid model.GuideBid) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":                        oid,
		"status":                     model.StatusPending,
		"accepted_guide":             bson.M{"$exists": false},
		"responding_guides.guide_id": bson.M{"$ne": bid.GuideID},
	}
	update := bson.M{
		"$push": bson.M{"responding_guides": bid},
		"$set":  bson.M{"updated_at": now()},
	}
	return r.updateOne(ctx, "add bid", filter, update)
}

// RejectBid drops the guide's bid and invitation so the guide is fully
// released from the negotiation.
func (r *mongoCustomizedTourRepository) RejectBid(ctx context.Context, id, travelerID, guideID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":                        oid,
		"traveler_id":                travelerID,
		"status":                     model.StatusPending,
		"responding_guides.guide_id": guideID,
	}
	update := bson.M{
		"$pull": bson.M{
			"responding_guides": bson.M{"guide_id": guideID},
			"sent_requests":     guideID,
		},
		"$set": bson.M{"updated_at": now()},
	}
	return r.updateOne(ctx, "reject bid", filter, update)
}

// AcceptBid moves the request from pending to confirmed at the bid's price.
// The bid must still be present with the same price. The returned document
// is the state before the update, so callers can see which guides to
// release.
func (r *mongoCustomizedTourRepository) AcceptBid(ctx context.Context, id, travelerID string, bid model.GuideBid) (*model.CustomizedTourRequest, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":         oid,
		"traveler_id": travelerID,
		"status":      model.StatusPending,
		"responding_guides": bson.M{"$elemMatch": bson.M{
			"guide_id": bid.GuideID,
			"price":    bid.Price,
		}},
	}
	update := bson.M{"$set": bson.M{
		"status":            model.StatusConfirmed,
		"accepted_guide":    bid.GuideID,
		"price":             bid.Price,
		"payment_status":    model.PaymentPending,
		"responding_guides": bson.A{},
		"updated_at":        now(),
	}}
	return r.findOneAndUpdate(ctx, "accept bid", filter, update, options.Before)
}

// Cancel cancels a pending request, or a confirmed one created after
// confirmedSince. An empty travelerID skips the ownership check.
func (r *mongoCustomizedTourRepository) Cancel(ctx context.Context, id, travelerID string, confirmedSince time.Time) (*model.CustomizedTourRequest, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id": oid,
		"$or": bson.A{
			bson.M{"status": model.StatusPending},
			bson.M{"status": model.StatusConfirmed, "created_at": bson.M{"$gt": confirmedSince}},
		},
	}
	if travelerID != "" {
		filter["traveler_id"] = travelerID
	}
	ts := now()
	update := bson.M{"$set": bson.M{
		"status":            model.StatusCancelled,
		"responding_guides": bson.A{},
		"cancelled_at":      ts,
		"updated_at":        ts,
	}}
	return r.findOneAndUpdate(ctx, "cancel customized tour", filter, update, options.Before)
}

func (r *mongoCustomizedTourRepository) SetCompletionFlag(ctx context.Context, id string, party Party, partyID string, at time.Time) (*model.CustomizedTourRequest, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":            oid,
		"status":         model.StatusConfirmed,
		"payment_status": model.PaymentPaid,
		"end_date":       bson.M{"$lte": at},
	}
	var flag string
	switch party {
	case PartyGuide:
		filter["accepted_guide"] = partyID
		flag = "guide_confirm_completion"
	case PartyUser:
		filter["traveler_id"] = partyID
		flag = "user_confirm_completion"
	default:
		return nil, fmt.Errorf("unknown completion party %q", party)
	}

	update := bson.M{"$set": bson.M{flag: true, "updated_at": now()}}
	return r.findOneAndUpdate(ctx, "confirm completion", filter, update, options.After)
}

// Complete closes a confirmed request once both parties have confirmed.
func (r *mongoCustomizedTourRepository) Complete(ctx context.Context, id string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":                      oid,
		"status":                   model.StatusConfirmed,
		"guide_confirm_completion": true,
		"user_confirm_completion":  true,
	}
	update := bson.M{"$set": bson.M{
		"status":       model.StatusCompleted,
		"completed_at": at,
		"updated_at":   now(),
	}}
	return r.updateOne(ctx, "complete customized tour", filter, update)
}

func (r *mongoCustomizedTourRepository) MarkPaid(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":            oid,
		"status":         model.StatusConfirmed,
		"accepted_guide": bson.M{"$exists": true, "$ne": ""},
	}
	update := bson.M{"$set": bson.M{
		"payment_status": model.PaymentPaid,
		"updated_at":     now(),
	}}
	return r.updateOne(ctx, "mark customized tour paid", filter, update)
}

// SweepExpired completes every paid, confirmed request whose end date has
// passed, regardless of the confirmation flags.
func (r *mongoCustomizedTourRepository) SweepExpired(ctx context.Context, at time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"status":         model.StatusConfirmed,
		"payment_status": model.PaymentPaid,
		"end_date":       bson.M{"$lt": at},
	}
	update := bson.M{"$set": bson.M{
		"status":       model.StatusCompleted,
		"completed_at": at,
		"updated_at":   now(),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired customized tours: %w", err)
	}
	return result.ModifiedCount, nil
}
