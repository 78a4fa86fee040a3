package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tour-server/models"
	"tour-server/storage"
	"tour-server/utils/errors"
)

// TourFields can be filtered, sorted or selected on list requests.
var TourFields = map[string]bool{
	"name": true, "slug": true, "duration": true, "maxGroupSize": true,
	"difficulty": true, "ratingsAverage": true, "ratingsQuantity": true,
	"price": true, "priceDiscount": true, "summary": true, "description": true,
	"imageCover": true, "images": true, "createdAt": true, "startDates": true,
	"secretTour": true, "startLocation": true, "locations": true, "guides": true,
}

// TourStats is one difficulty bucket of the tour statistics.
type TourStats struct {
	Difficulty string  `json:"_id" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

// MonthlyPlan is the number of tour starts in one month of a year.
type MonthlyPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

type TourService struct {
	collection *mongo.Collection
	reader     TourReader
	now        func() time.Time
}

// NewTourService wires the default read chain: timing outermost, then the
// secret-tour filter, then guide population around the collection read.
func NewTourService(db *mongo.Database, profiles ProfileDirectory) *TourService {
	collection := db.Collection(storage.ToursCollection)
	return &TourService{
		collection: collection,
		reader: DecorateTourReader(mongoTourReader{collection: collection},
			TimeTourQueries,
			ExcludeSecretTours,
			PopulateGuides(profiles),
		),
		now: time.Now,
	}
}

func (s *TourService) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}},
		{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
	})
	return err
}

func (s *TourService) List(ctx context.Context, q TourQuery) ([]models.Tour, error) {
	return s.reader.Find(ctx, q)
}

// Get returns one tour. Secret tours are only found when includeSecret is
// set.
func (s *TourService) Get(ctx context.Context, id primitive.ObjectID, includeSecret bool) (*models.Tour, error) {
	tours, err := s.reader.Find(ctx, TourQuery{
		QueryFeatures: QueryFeatures{Filter: bson.M{"_id": id}, Limit: 1},
		IncludeSecret: includeSecret,
	})
	if err != nil {
		return nil, err
	}
	if len(tours) == 0 {
		return nil, errors.NotFound("tour")
	}
	return &tours[0], nil
}

// ByIDs returns the visible tours among ids, e.g. the tours a user booked.
func (s *TourService) ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Tour, error) {
	if len(ids) == 0 {
		return []models.Tour{}, nil
	}
	return s.reader.Find(ctx, TourQuery{
		QueryFeatures: QueryFeatures{
			Filter: bson.M{"_id": bson.M{"$in": ids}},
			Sort:   bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}},
		},
	})
}

// TourNames maps tour ids to names. Bookings of secret tours still show the
// name, so this reads the collection directly.
func (s *TourService) TourNames(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1})
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var tours []struct {
		ID   primitive.ObjectID `bson:"_id"`
		Name string             `bson:"name"`
	}
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	for _, t := range tours {
		names[t.ID] = t.Name
	}
	return names, nil
}

func (s *TourService) Create(ctx context.Context, in models.TourInput) (*models.Tour, error) {
	tour, err := models.NewTour(in, s.now())
	if err != nil {
		return nil, err
	}
	result, err := s.collection.InsertOne(ctx, tour)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, result.InsertedID.(primitive.ObjectID), true)
}

func (s *TourService) Update(ctx context.Context, id primitive.ObjectID, patch models.TourPatch) (*models.Tour, error) {
	current, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	set, err := patch.Update(current)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return current, nil
	}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, errors.NotFound("tour")
	}
	return s.Get(ctx, id, true)
}

func (s *TourService) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return errors.NotFound("tour")
	}
	return nil
}

// SetRatings implements TourRatingStore. The average is stored rounded to
// one decimal.
func (s *TourService) SetRatings(ctx context.Context, tourID primitive.ObjectID, quantity int, average float64) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": tourID}, bson.M{"$set": bson.M{
		"ratingsQuantity": quantity,
		"ratingsAverage":  models.RoundRating(average),
	}})
	return err
}

func tourStatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": models.DefaultRatingsAverage}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
}

// Stats groups well-rated tours by difficulty.
func (s *TourService) Stats(ctx context.Context) ([]TourStats, error) {
	cursor, err := s.collection.Aggregate(ctx, tourStatsPipeline())
	if err != nil {
		return nil, err
	}
	stats := []TourStats{}
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func monthlyPlanPipeline(year int) mongo.Pipeline {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlan, error) {
	cursor, err := s.collection.Aggregate(ctx, monthlyPlanPipeline(year))
	if err != nil {
		return nil, err
	}
	plan := []MonthlyPlan{}
	if err := cursor.All(ctx, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}
