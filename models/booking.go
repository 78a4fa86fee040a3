package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Tour      primitive.ObjectID `json:"tourId" bson:"tour"`
	User      primitive.ObjectID `json:"userId" bson:"user"`
	Price     float64            `json:"price" bson:"price"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Paid      bool               `json:"paid" bson:"paid"`
	TourName  string             `json:"tourName,omitempty" bson:"-"`
	Customer  *PublicProfile     `json:"user,omitempty" bson:"-"`
}

type BookingInput struct {
	Tour  string  `json:"tour" validate:"required,mongodb"`
	User  string  `json:"user" validate:"required,mongodb"`
	Price float64 `json:"price" validate:"required,gt=0"`
	Paid  *bool   `json:"paid"`
}

func NewBooking(in BookingInput, now time.Time) (*Booking, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	tour, err := primitive.ObjectIDFromHex(in.Tour)
	if err != nil {
		return nil, err
	}
	user, err := primitive.ObjectIDFromHex(in.User)
	if err != nil {
		return nil, err
	}
	paid := true
	if in.Paid != nil {
		paid = *in.Paid
	}
	return &Booking{Tour: tour, User: user, Price: in.Price, CreatedAt: now, Paid: paid}, nil
}

type BookingPatch struct {
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
	Paid  *bool    `json:"paid"`
}

func (p BookingPatch) Update() (bson.M, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	set := bson.M{}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.Paid != nil {
		set["paid"] = *p.Paid
	}
	if len(set) == 0 {
		return nil, &FieldError{Field: "price", Message: "Nothing to update: send price or paid"}
	}
	return set, nil
}
