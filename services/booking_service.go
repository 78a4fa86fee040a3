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

// BookingFields can be filtered, sorted or selected on list requests.
var BookingFields = map[string]bool{
	"tour": true, "user": true, "price": true, "createdAt": true, "paid": true,
}

type BookingService struct {
	collection *mongo.Collection
	tours      *TourService
	profiles   ProfileDirectory
	now        func() time.Time
}

func NewBookingService(db *mongo.Database, tours *TourService, profiles ProfileDirectory) *BookingService {
	return &BookingService{
		collection: db.Collection(storage.BookingsCollection),
		tours:      tours,
		profiles:   profiles,
		now:        time.Now,
	}
}

func (s *BookingService) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "tour", Value: 1}}},
	})
	return err
}

func (s *BookingService) List(ctx context.Context, qf QueryFeatures) ([]models.Booking, error) {
	filter := qf.Filter
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := s.collection.Find(ctx, filter, qf.FindOptions())
	if err != nil {
		return nil, err
	}
	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	if err := s.populate(ctx, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingService) Get(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("booking")
		}
		return nil, err
	}
	bookings := []models.Booking{booking}
	if err := s.populate(ctx, bookings); err != nil {
		return nil, err
	}
	return &bookings[0], nil
}

func (s *BookingService) Create(ctx context.Context, in models.BookingInput) (*models.Booking, error) {
	booking, err := models.NewBooking(in, s.now())
	if err != nil {
		return nil, err
	}
	result, err := s.collection.InsertOne(ctx, booking)
	if err != nil {
		return nil, err
	}
	booking.ID = result.InsertedID.(primitive.ObjectID)
	return booking, nil
}

func (s *BookingService) Update(ctx context.Context, id primitive.ObjectID, patch models.BookingPatch) (*models.Booking, error) {
	set, err := patch.Update()
	if err != nil {
		return nil, err
	}
	var booking models.Booking
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&booking); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("booking")
		}
		return nil, err
	}
	return &booking, nil
}

func (s *BookingService) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return errors.NotFound("booking")
	}
	return nil
}

// MyTours returns the tours userID has booked, read through the decorated
// tour reader.
func (s *BookingService) MyTours(ctx context.Context, userID primitive.ObjectID) ([]models.Tour, error) {
	ids, err := s.collection.Distinct(ctx, "tour", bson.M{"user": userID})
	if err != nil {
		return nil, err
	}
	tourIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if id, ok := v.(primitive.ObjectID); ok {
			tourIDs = append(tourIDs, id)
		}
	}
	return s.tours.ByIDs(ctx, tourIDs)
}

// populate fills in the customer profile and the tour name.
func (s *BookingService) populate(ctx context.Context, bookings []models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	userSeen := make(map[primitive.ObjectID]bool)
	tourSeen := make(map[primitive.ObjectID]bool)
	var userIDs, tourIDs []primitive.ObjectID
	for _, b := range bookings {
		if !userSeen[b.User] {
			userSeen[b.User] = true
			userIDs = append(userIDs, b.User)
		}
		if !tourSeen[b.Tour] {
			tourSeen[b.Tour] = true
			tourIDs = append(tourIDs, b.Tour)
		}
	}

	profiles, err := s.profiles.PublicProfiles(ctx, userIDs)
	if err != nil {
		return err
	}
	names, err := s.tours.TourNames(ctx, tourIDs)
	if err != nil {
		return err
	}
	for i := range bookings {
		if p, ok := profiles[bookings[i].User]; ok {
			bookings[i].Customer = &p
		}
		bookings[i].TourName = names[bookings[i].Tour]
	}
	return nil
}
