package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tour-server/models"
)

// TourQuery is a read against the tours collection. IncludeSecret lifts the
// secret-tour filter for callers allowed to see hidden tours.
type TourQuery struct {
	QueryFeatures
	IncludeSecret bool
}

// TourReader executes tour reads. Every read path of the service goes
// through one so decorators apply to all of them.
type TourReader interface {
	Find(ctx context.Context, q TourQuery) ([]models.Tour, error)
}

// TourReaderFunc adapts a function to TourReader.
type TourReaderFunc func(ctx context.Context, q TourQuery) ([]models.Tour, error)

func (f TourReaderFunc) Find(ctx context.Context, q TourQuery) ([]models.Tour, error) {
	return f(ctx, q)
}

// TourReadDecorator wraps a reader with extra behavior.
type TourReadDecorator func(next TourReader) TourReader

// DecorateTourReader applies decorators in order: the first one listed is
// the outermost and sees the query first and the results last.
func DecorateTourReader(base TourReader, decorators ...TourReadDecorator) TourReader {
	r := base
	for i := len(decorators) - 1; i >= 0; i-- {
		r = decorators[i](r)
	}
	return r
}

// secretTourFilter hides tours flagged secretTour.
func secretTourFilter() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

// ExcludeSecretTours adds the secret-tour filter unless the query opts out.
// The caller's filter is never mutated.
func ExcludeSecretTours(next TourReader) TourReader {
	return TourReaderFunc(func(ctx context.Context, q TourQuery) ([]models.Tour, error) {
		if !q.IncludeSecret {
			if len(q.Filter) == 0 {
				q.Filter = secretTourFilter()
			} else {
				q.Filter = bson.M{"$and": bson.A{q.Filter, secretTourFilter()}}
			}
		}
		return next.Find(ctx, q)
	})
}

// ProfileDirectory resolves user ids to public profiles. Unknown or inactive
// ids are absent from the result.
type ProfileDirectory interface {
	PublicProfiles(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicProfile, error)
}

// PopulateGuides replaces the guide ids of every result with the guides'
// public profiles, keeping the order of the ids.
func PopulateGuides(profiles ProfileDirectory) TourReadDecorator {
	return func(next TourReader) TourReader {
		return TourReaderFunc(func(ctx context.Context, q TourQuery) ([]models.Tour, error) {
			tours, err := next.Find(ctx, q)
			if err != nil || len(tours) == 0 {
				return tours, err
			}

			seen := make(map[primitive.ObjectID]bool)
			var ids []primitive.ObjectID
			for _, t := range tours {
				for _, id := range t.Guides {
					if !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
				}
			}
			if len(ids) == 0 {
				return tours, nil
			}

			byID, err := profiles.PublicProfiles(ctx, ids)
			if err != nil {
				return nil, err
			}
			for i := range tours {
				guides := make([]models.PublicProfile, 0, len(tours[i].Guides))
				for _, id := range tours[i].Guides {
					if p, ok := byID[id]; ok {
						guides = append(guides, p)
					}
				}
				tours[i].GuideProfiles = guides
			}
			return tours, nil
		})
	}
}

// TimeTourQueries logs how long each read took, including the decorators
// inside it.
func TimeTourQueries(next TourReader) TourReader {
	return TourReaderFunc(func(ctx context.Context, q TourQuery) ([]models.Tour, error) {
		start := time.Now()
		tours, err := next.Find(ctx, q)
		log.Printf("Query took %d ms", time.Since(start).Milliseconds())
		return tours, err
	})
}

// mongoTourReader is the undecorated read against the collection.
type mongoTourReader struct {
	collection *mongo.Collection
}

func (r mongoTourReader) Find(ctx context.Context, q TourQuery) ([]models.Tour, error) {
	filter := q.Filter
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := r.collection.Find(ctx, filter, q.FindOptions())
	if err != nil {
		return nil, err
	}
	tours := []models.Tour{}
	if err := cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	if len(q.Projection) > 0 {
		for i := range tours {
			tours[i].Select(q.Projection)
		}
	}
	return tours, nil
}
