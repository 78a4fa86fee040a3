package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

const (
	DefaultRatingsAverage = 4.5
	MinRatingsAverage     = 1.0
	MaxRatingsAverage     = 5.0
)

// Tour is the stored tour document. Guides holds the referenced user ids;
// GuideProfiles is filled by the read path and never persisted.
type Tour struct {
	ID              primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name            string               `json:"name" bson:"name"`
	Slug            string               `json:"slug" bson:"slug"`
	Duration        int                  `json:"duration" bson:"duration"`
	MaxGroupSize    int                  `json:"maxGroupSize" bson:"maxGroupSize"`
	Difficulty      Difficulty           `json:"difficulty" bson:"difficulty"`
	RatingsAverage  float64              `json:"ratingsAverage" bson:"ratingsAverage"`
	RatingsQuantity int                  `json:"ratingsQuantity" bson:"ratingsQuantity"`
	Price           float64              `json:"price" bson:"price"`
	PriceDiscount   *float64             `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty"`
	Summary         string               `json:"summary" bson:"summary"`
	Description     string               `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string               `json:"imageCover" bson:"imageCover"`
	Images          []string             `json:"images" bson:"images"`
	CreatedAt       time.Time            `json:"-" bson:"createdAt"`
	StartDates      []time.Time          `json:"startDates" bson:"startDates"`
	SecretTour      bool                 `json:"secretTour" bson:"secretTour"`
	StartLocation   *Location            `json:"startLocation,omitempty" bson:"startLocation,omitempty"`
	Locations       []Location           `json:"locations" bson:"locations"`
	Guides          []primitive.ObjectID `json:"-" bson:"guides"`
	GuideProfiles   []PublicProfile      `json:"guides" bson:"-"`
	Reviews         []Review             `json:"reviews,omitempty" bson:"-"`

	selected bson.M
}

// derivedFrom lists the output keys computed from a stored field.
var derivedFrom = map[string]string{"durationWeeks": "duration"}

// Select limits the JSON output to a projection, as passed to Find: either
// inclusive (field: 1) or exclusive (field: 0). The id is always kept.
func (t *Tour) Select(projection bson.M) {
	t.selected = projection
}

func (t Tour) keeps(key string) bool {
	if len(t.selected) == 0 || key == "id" {
		return true
	}
	if src, ok := derivedFrom[key]; ok {
		key = src
	}
	if v, ok := t.selected[key]; ok {
		return included(v)
	}
	// unlisted keys survive only an exclusive projection
	for _, v := range t.selected {
		if included(v) {
			return false
		}
	}
	return true
}

func included(v any) bool {
	switch n := v.(type) {
	case bool:
		return n
	case int:
		return n != 0
	case int32:
		return n != 0
	case int64:
		return n != 0
	case float64:
		return n != 0
	}
	return true
}

// DurationWeeks is derived, never stored.
func (t Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

func (t Tour) MarshalJSON() ([]byte, error) {
	type tourJSON Tour
	guides := t.GuideProfiles
	if guides == nil {
		guides = []PublicProfile{}
	}
	out := struct {
		tourJSON
		GuideProfiles []PublicProfile `json:"guides"`
		DurationWeeks float64         `json:"durationWeeks"`
	}{tourJSON(t), guides, t.DurationWeeks()}
	b, err := json.Marshal(out)
	if err != nil || len(t.selected) == 0 {
		return b, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for key := range fields {
		if !t.keeps(key) {
			delete(fields, key)
		}
	}
	return json.Marshal(fields)
}

// RoundRating rounds to one decimal place, e.g. 4.666 -> 4.7.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// TourInput is the client payload for creating a tour. Rating fields, the
// slug and createdAt are not accepted from clients.
type TourInput struct {
	Name          string      `json:"name" validate:"required,min=10,max=40"`
	Duration      int         `json:"duration" validate:"required,gt=0"`
	MaxGroupSize  int         `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty    Difficulty  `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	Price         float64     `json:"price" validate:"required,gt=0"`
	PriceDiscount *float64    `json:"priceDiscount" validate:"omitempty,gte=0"`
	Summary       string      `json:"summary" validate:"required"`
	Description   string      `json:"description"`
	ImageCover    string      `json:"imageCover" validate:"required"`
	Images        []string    `json:"images"`
	StartDates    []time.Time `json:"startDates"`
	SecretTour    bool        `json:"secretTour"`
	StartLocation *Location   `json:"startLocation" validate:"omitempty"`
	Locations     []Location  `json:"locations" validate:"dive"`
	Guides        []string    `json:"guides" validate:"dive,mongodb"`
}

func (in *TourInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Summary = strings.TrimSpace(in.Summary)
	in.Description = strings.TrimSpace(in.Description)
}

// NewTour validates the input and builds the document to insert.
func NewTour(in TourInput, now time.Time) (*Tour, error) {
	in.normalize()
	if err := Validate(in); err != nil {
		return nil, err
	}
	if err := checkDiscount(in.PriceDiscount, in.Price); err != nil {
		return nil, err
	}
	guides, err := objectIDs(in.Guides)
	if err != nil {
		return nil, err
	}

	tour := &Tour{
		Name:            in.Name,
		Slug:            slug.Make(in.Name),
		Duration:        in.Duration,
		MaxGroupSize:    in.MaxGroupSize,
		Difficulty:      in.Difficulty,
		RatingsAverage:  DefaultRatingsAverage,
		RatingsQuantity: 0,
		Price:           in.Price,
		PriceDiscount:   in.PriceDiscount,
		Summary:         in.Summary,
		Description:     in.Description,
		ImageCover:      in.ImageCover,
		Images:          nonNil(in.Images),
		CreatedAt:       now,
		StartDates:      in.StartDates,
		SecretTour:      in.SecretTour,
		StartLocation:   in.StartLocation,
		Locations:       in.Locations,
		Guides:          guides,
	}
	if tour.StartDates == nil {
		tour.StartDates = []time.Time{}
	}
	if tour.Locations == nil {
		tour.Locations = []Location{}
	}
	if tour.StartLocation != nil {
		tour.StartLocation.normalize()
	}
	for i := range tour.Locations {
		tour.Locations[i].normalize()
	}
	return tour, nil
}

// TourPatch carries a partial update. Nil fields are left untouched.
type TourPatch struct {
	Name          *string     `json:"name" validate:"omitempty,min=10,max=40"`
	Duration      *int        `json:"duration" validate:"omitempty,gt=0"`
	MaxGroupSize  *int        `json:"maxGroupSize" validate:"omitempty,gt=0"`
	Difficulty    *Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium difficult"`
	Price         *float64    `json:"price" validate:"omitempty,gt=0"`
	PriceDiscount *float64    `json:"priceDiscount" validate:"omitempty,gte=0"`
	Summary       *string     `json:"summary" validate:"omitempty,min=1"`
	Description   *string     `json:"description"`
	ImageCover    *string     `json:"imageCover" validate:"omitempty,min=1"`
	Images        []string    `json:"images"`
	StartDates    []time.Time `json:"startDates"`
	SecretTour    *bool       `json:"secretTour"`
	StartLocation *Location   `json:"startLocation"`
	Locations     []Location  `json:"locations" validate:"dive"`
	Guides        []string    `json:"guides" validate:"dive,mongodb"`
}

// Update validates the patch against the current document and returns the
// $set document. The discount is checked against the effective price.
func (p TourPatch) Update(current *Tour) (bson.M, error) {
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		p.Name = &trimmed
	}
	if p.Summary != nil {
		trimmed := strings.TrimSpace(*p.Summary)
		p.Summary = &trimmed
	}
	if err := Validate(p); err != nil {
		return nil, err
	}

	price := current.Price
	if p.Price != nil {
		price = *p.Price
	}
	discount := current.PriceDiscount
	if p.PriceDiscount != nil {
		discount = p.PriceDiscount
	}
	if err := checkDiscount(discount, price); err != nil {
		return nil, err
	}

	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
		set["slug"] = slug.Make(*p.Name)
	}
	if p.Duration != nil {
		set["duration"] = *p.Duration
	}
	if p.MaxGroupSize != nil {
		set["maxGroupSize"] = *p.MaxGroupSize
	}
	if p.Difficulty != nil {
		set["difficulty"] = *p.Difficulty
	}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.PriceDiscount != nil {
		set["priceDiscount"] = *p.PriceDiscount
	}
	if p.Summary != nil {
		set["summary"] = *p.Summary
	}
	if p.Description != nil {
		set["description"] = strings.TrimSpace(*p.Description)
	}
	if p.ImageCover != nil {
		set["imageCover"] = *p.ImageCover
	}
	if p.Images != nil {
		set["images"] = p.Images
	}
	if p.StartDates != nil {
		set["startDates"] = p.StartDates
	}
	if p.SecretTour != nil {
		set["secretTour"] = *p.SecretTour
	}
	if p.StartLocation != nil {
		p.StartLocation.normalize()
		set["startLocation"] = p.StartLocation
	}
	if p.Locations != nil {
		for i := range p.Locations {
			p.Locations[i].normalize()
		}
		set["locations"] = p.Locations
	}
	if p.Guides != nil {
		guides, err := objectIDs(p.Guides)
		if err != nil {
			return nil, err
		}
		set["guides"] = guides
	}
	return set, nil
}

func checkDiscount(discount *float64, price float64) error {
	if discount != nil && *discount >= price {
		return &FieldError{
			Field:   "priceDiscount",
			Message: fmt.Sprintf("Discount price (%v) should be below the regular price", *discount),
		}
	}
	return nil
}

func objectIDs(hexes []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
