package models

import (
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Review    string             `json:"review" bson:"review"`
	Rating    int                `json:"rating" bson:"rating"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Tour      primitive.ObjectID `json:"tour" bson:"tour"`
	User      primitive.ObjectID `json:"-" bson:"user"`
	Author    *PublicProfile     `json:"-" bson:"-"`
}

// MarshalJSON renders "user" as the author's profile when it was populated
// and as the bare id otherwise.
func (r Review) MarshalJSON() ([]byte, error) {
	type reviewJSON Review
	var user any = r.User
	if r.Author != nil {
		user = r.Author
	}
	return json.Marshal(struct {
		reviewJSON
		User any `json:"user"`
	}{reviewJSON(r), user})
}

type ReviewInput struct {
	Review string `json:"review" validate:"required"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Tour   string `json:"tour" validate:"required,mongodb"`
}

// NewReview validates the input; the author always comes from the
// authenticated user, never from the body.
func NewReview(in ReviewInput, user primitive.ObjectID, now time.Time) (*Review, error) {
	in.Review = strings.TrimSpace(in.Review)
	if err := Validate(in); err != nil {
		return nil, err
	}
	tour, err := primitive.ObjectIDFromHex(in.Tour)
	if err != nil {
		return nil, err
	}
	return &Review{
		Review:    in.Review,
		Rating:    in.Rating,
		CreatedAt: now,
		Tour:      tour,
		User:      user,
	}, nil
}

// ReviewPatch only touches the text and the rating; tour and author are
// fixed once a review exists.
type ReviewPatch struct {
	Review *string `json:"review" validate:"omitempty,min=1"`
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=5"`
}

func (p ReviewPatch) Update() (bson.M, error) {
	if p.Review != nil {
		trimmed := strings.TrimSpace(*p.Review)
		p.Review = &trimmed
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	set := bson.M{}
	if p.Review != nil {
		set["review"] = *p.Review
	}
	if p.Rating != nil {
		set["rating"] = *p.Rating
	}
	if len(set) == 0 {
		return nil, &FieldError{Field: "review", Message: "Nothing to update: send review or rating"}
	}
	return set, nil
}

// Apply copies the patched values onto a snapshot taken before the update.
func (p ReviewPatch) Apply(r *Review) {
	if p.Review != nil {
		r.Review = strings.TrimSpace(*p.Review)
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
}
