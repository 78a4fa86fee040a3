package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tour-server/models"
	"tour-server/storage"
	"tour-server/utils/errors"
)

// ReviewFields can be filtered, sorted or selected on list requests.
var ReviewFields = map[string]bool{
	"review": true, "rating": true, "createdAt": true, "tour": true, "user": true,
}

var errAlreadyReviewed = errors.NewAPIError("DUPLICATE_REVIEW", "You have already reviewed this tour", http.StatusBadRequest)

// ReviewService owns the reviews collection. Every write that can change a
// rating goes through the aggregator afterwards.
type ReviewService struct {
	collection *mongo.Collection
	profiles   ProfileDirectory
	ratings    *RatingAggregator
	now        func() time.Time
}

func NewReviewService(db *mongo.Database, profiles ProfileDirectory, tours TourRatingStore) *ReviewService {
	collection := db.Collection(storage.ReviewsCollection)
	return &ReviewService{
		collection: collection,
		profiles:   profiles,
		ratings:    NewRatingAggregator(mongoReviewStats{collection: collection}, tours),
		now:        time.Now,
	}
}

// EnsureIndexes creates the one-review-per-user-per-tour constraint.
func (s *ReviewService) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *ReviewService) List(ctx context.Context, qf QueryFeatures) ([]models.Review, error) {
	filter := qf.Filter
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := s.collection.Find(ctx, filter, qf.FindOptions())
	if err != nil {
		return nil, err
	}
	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	if err := s.populateAuthors(ctx, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ForTour returns the reviews of one tour, newest first.
func (s *ReviewService) ForTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Review, error) {
	return s.List(ctx, QueryFeatures{
		Filter: bson.M{"tour": tourID},
		Sort:   bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}},
	})
}

func (s *ReviewService) Get(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var review models.Review
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("review")
		}
		return nil, err
	}
	reviews := []models.Review{review}
	if err := s.populateAuthors(ctx, reviews); err != nil {
		return nil, err
	}
	return &reviews[0], nil
}

// Create stores the review and recalculates the tour's rating. If the
// recalculation fails the review stays and the error is returned.
func (s *ReviewService) Create(ctx context.Context, in models.ReviewInput, user primitive.ObjectID) (*models.Review, error) {
	review, err := models.NewReview(in, user, s.now())
	if err != nil {
		return nil, err
	}
	result, err := s.collection.InsertOne(ctx, review)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errAlreadyReviewed
		}
		return nil, err
	}
	review.ID = result.InsertedID.(primitive.ObjectID)

	if err := s.ratings.Recalculate(ctx, review.Tour); err != nil {
		return nil, err
	}
	return review, nil
}

// ownedFilter limits writes to the author's own reviews unless the caller is
// an admin.
func ownedFilter(id primitive.ObjectID, actor *models.User) bson.M {
	filter := bson.M{"_id": id}
	if actor.Role != models.RoleAdmin {
		filter["user"] = actor.ID
	}
	return filter
}

// Update changes the text or rating. The snapshot taken before the write
// names the tour to recalculate.
func (s *ReviewService) Update(ctx context.Context, id primitive.ObjectID, actor *models.User, patch models.ReviewPatch) (*models.Review, error) {
	set, err := patch.Update()
	if err != nil {
		return nil, err
	}

	var before models.Review
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	err = s.collection.FindOneAndUpdate(ctx, ownedFilter(id, actor), bson.M{"$set": set}, opts).Decode(&before)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("review")
		}
		return nil, err
	}

	if err := s.ratings.Recalculate(ctx, before.Tour); err != nil {
		return nil, err
	}
	patch.Apply(&before)
	return &before, nil
}

// Delete removes the review and recalculates the tour it belonged to.
func (s *ReviewService) Delete(ctx context.Context, id primitive.ObjectID, actor *models.User) error {
	var before models.Review
	if err := s.collection.FindOneAndDelete(ctx, ownedFilter(id, actor)).Decode(&before); err != nil {
		if err == mongo.ErrNoDocuments {
			return errors.NotFound("review")
		}
		return err
	}
	return s.ratings.Recalculate(ctx, before.Tour)
}

// populateAuthors sets the author's name and photo on every review.
func (s *ReviewService) populateAuthors(ctx context.Context, reviews []models.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, r := range reviews {
		if !seen[r.User] {
			seen[r.User] = true
			ids = append(ids, r.User)
		}
	}
	byID, err := s.profiles.PublicProfiles(ctx, ids)
	if err != nil {
		return fmt.Errorf("populate review authors: %w", err)
	}
	for i := range reviews {
		if p, ok := byID[reviews[i].User]; ok {
			reviews[i].Author = &models.PublicProfile{ID: p.ID, Name: p.Name, Photo: p.Photo}
		}
	}
	return nil
}
