package services

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tour-server/models"
)

// RatingStats is one $group row of the review aggregation.
type RatingStats struct {
	Tour      primitive.ObjectID `bson:"_id"`
	NRating   int                `bson:"nRating"`
	AvgRating float64            `bson:"avgRating"`
}

// ReviewStatsSource aggregates the reviews of a tour. An empty result means
// the tour has no reviews.
type ReviewStatsSource interface {
	RatingStats(ctx context.Context, tourID primitive.ObjectID) ([]RatingStats, error)
}

// TourRatingStore persists the derived rating fields of a tour.
type TourRatingStore interface {
	SetRatings(ctx context.Context, tourID primitive.ObjectID, quantity int, average float64) error
}

// RatingAggregator keeps ratingsQuantity and ratingsAverage of a tour equal
// to the aggregate of its reviews. Recalculations of the same tour are
// serialized inside this process; across processes the last write wins.
type RatingAggregator struct {
	reviews ReviewStatsSource
	tours   TourRatingStore
	locks   tourLocks
}

func NewRatingAggregator(reviews ReviewStatsSource, tours TourRatingStore) *RatingAggregator {
	return &RatingAggregator{reviews: reviews, tours: tours}
}

// Recalculate reads the current reviews of tourID and writes the result on
// the tour. Errors are returned to the caller; nothing is rolled back.
func (a *RatingAggregator) Recalculate(ctx context.Context, tourID primitive.ObjectID) error {
	unlock := a.locks.lock(tourID)
	defer unlock()

	stats, err := a.reviews.RatingStats(ctx, tourID)
	if err != nil {
		return fmt.Errorf("RatingAggregator.Recalculate: aggregate %s: %w", tourID.Hex(), err)
	}

	quantity, average := 0, models.DefaultRatingsAverage
	if len(stats) > 0 && stats[0].NRating > 0 {
		quantity, average = stats[0].NRating, stats[0].AvgRating
	}

	if err := a.tours.SetRatings(ctx, tourID, quantity, average); err != nil {
		return fmt.Errorf("RatingAggregator.Recalculate: update tour %s: %w", tourID.Hex(), err)
	}
	return nil
}

// ratingStatsPipeline groups the reviews of one tour into count and mean.
func ratingStatsPipeline(tourID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	}
}

// mongoReviewStats runs the aggregation on the reviews collection.
type mongoReviewStats struct {
	collection *mongo.Collection
}

func (s mongoReviewStats) RatingStats(ctx context.Context, tourID primitive.ObjectID) ([]RatingStats, error) {
	cursor, err := s.collection.Aggregate(ctx, ratingStatsPipeline(tourID))
	if err != nil {
		return nil, err
	}
	var stats []RatingStats
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// tourLocks hands out one mutex per tour and forgets it once nobody holds
// or waits for it.
type tourLocks struct {
	mu    sync.Mutex
	locks map[primitive.ObjectID]*tourLock
}

type tourLock struct {
	mu   sync.Mutex
	refs int
}

func (l *tourLocks) lock(id primitive.ObjectID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[primitive.ObjectID]*tourLock)
	}
	tl, ok := l.locks[id]
	if !ok {
		tl = &tourLock{}
		l.locks[id] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
