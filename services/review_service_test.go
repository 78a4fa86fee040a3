package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"tour-server/models"
	"tour-server/utils/errors"
)

func statsBatch(tour primitive.ObjectID, n int, avg float64) bson.D {
	return mtest.CreateCursorResponse(0, "natours.reviews", mtest.FirstBatch, bson.D{
		{Key: "_id", Value: tour},
		{Key: "nRating", Value: n},
		{Key: "avgRating", Value: avg},
	})
}

func reviewDoc(id, tour, user primitive.ObjectID, rating int) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "review", Value: "Great tour"},
		{Key: "rating", Value: rating},
		{Key: "createdAt", Value: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Key: "tour", Value: tour},
		{Key: "user", Value: user},
	}
}

func TestReviewService(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	tour, author := primitive.NewObjectID(), primitive.NewObjectID()
	profiles := fakeProfiles{author: {ID: author, Name: "Laura", Email: "laura@example.com", Photo: "user-2.jpg", Role: models.RoleUser}}

	mt.Run("create recalculates the tour", func(mt *mtest.T) {
		tours := &memTours{}
		svc := NewReviewService(mt.DB, profiles, tours)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			statsBatch(tour, 2, 4.0),
		)

		review, err := svc.Create(context.Background(), models.ReviewInput{
			Review: "Loved it",
			Rating: 5,
			Tour:   tour.Hex(),
		}, author)
		if err != nil {
			mt.Fatalf("Create: %v", err)
		}
		if review.User != author || review.Tour != tour {
			mt.Errorf("review = %+v", review)
		}
		if got := tours.ratings[tour]; got.quantity != 2 || got.average != 4.0 {
			mt.Errorf("ratings = %+v", got)
		}
	})

	mt.Run("duplicate review is rejected", func(mt *mtest.T) {
		tours := &memTours{}
		svc := NewReviewService(mt.DB, profiles, tours)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: natours.reviews index: tour_1_user_1",
		}))

		_, err := svc.Create(context.Background(), models.ReviewInput{Review: "Again", Rating: 4, Tour: tour.Hex()}, author)
		apiErr := errors.Translate(err)
		if apiErr.Status != http.StatusBadRequest || apiErr.Message != "You have already reviewed this tour" {
			mt.Errorf("err = %+v", apiErr)
		}
		if len(tours.ratings) != 0 {
			mt.Error("failed insert must not recalculate")
		}
	})

	mt.Run("recalculation failure is returned", func(mt *mtest.T) {
		svc := NewReviewService(mt.DB, profiles, &memTours{err: stderrors.New("tours down")})
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			statsBatch(tour, 1, 5),
		)
		if _, err := svc.Create(context.Background(), models.ReviewInput{Review: "Nice", Rating: 5, Tour: tour.Hex()}, author); err == nil {
			mt.Error("expected the recalculation error")
		}
	})

	mt.Run("update uses the snapshot tour", func(mt *mtest.T) {
		tours := &memTours{}
		svc := NewReviewService(mt.DB, profiles, tours)
		id := primitive.NewObjectID()
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: reviewDoc(id, tour, author, 5)}},
			statsBatch(tour, 2, 3.0),
		)

		rating := 1
		review, err := svc.Update(context.Background(), id, &models.User{ID: author, Role: models.RoleUser}, models.ReviewPatch{Rating: &rating})
		if err != nil {
			mt.Fatalf("Update: %v", err)
		}
		if review.Rating != 1 {
			mt.Errorf("rating = %d", review.Rating)
		}
		if got := tours.ratings[tour]; got.quantity != 2 || got.average != 3.0 {
			mt.Errorf("ratings = %+v", got)
		}
	})

	mt.Run("update of a missing review is 404", func(mt *mtest.T) {
		svc := NewReviewService(mt.DB, profiles, &memTours{})
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		text := "edited"
		_, err := svc.Update(context.Background(), primitive.NewObjectID(), &models.User{ID: author}, models.ReviewPatch{Review: &text})
		if got := errors.Translate(err); got.Status != http.StatusNotFound {
			mt.Errorf("err = %+v", got)
		}
	})

	mt.Run("deleting the last review resets the tour", func(mt *mtest.T) {
		tours := &memTours{ratings: map[primitive.ObjectID]tourRatings{tour: {1, 5}}}
		svc := NewReviewService(mt.DB, profiles, tours)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: reviewDoc(primitive.NewObjectID(), tour, author, 5)}},
			mtest.CreateCursorResponse(0, "natours.reviews", mtest.FirstBatch),
		)

		if err := svc.Delete(context.Background(), primitive.NewObjectID(), &models.User{ID: author, Role: models.RoleAdmin}); err != nil {
			mt.Fatalf("Delete: %v", err)
		}
		if got := tours.ratings[tour]; got.quantity != 0 || got.average != models.DefaultRatingsAverage {
			mt.Errorf("ratings = %+v", got)
		}
	})

	mt.Run("list populates name and photo only", func(mt *mtest.T) {
		svc := NewReviewService(mt.DB, profiles, &memTours{})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "natours.reviews", mtest.FirstBatch,
			reviewDoc(primitive.NewObjectID(), tour, author, 4),
		))

		reviews, err := svc.ForTour(context.Background(), tour)
		if err != nil {
			mt.Fatalf("ForTour: %v", err)
		}
		if len(reviews) != 1 || reviews[0].Author == nil {
			mt.Fatalf("reviews = %+v", reviews)
		}
		a := reviews[0].Author
		if a.Name != "Laura" || a.Photo != "user-2.jpg" || a.Email != "" || a.Role != "" {
			mt.Errorf("author = %+v", a)
		}
	})
}

func TestOwnedFilter(t *testing.T) {
	id, user := primitive.NewObjectID(), primitive.NewObjectID()
	if f := ownedFilter(id, &models.User{ID: user, Role: models.RoleUser}); f["user"] != user {
		t.Errorf("user filter = %v", f)
	}
	if f := ownedFilter(id, &models.User{ID: user, Role: models.RoleAdmin}); len(f) != 1 {
		t.Errorf("admin filter = %v", f)
	}
}
