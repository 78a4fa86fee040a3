package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tour-server/models"
)

// Earth radius in the supported distance units.
const (
	earthRadiusMiles = 3963.2
	earthRadiusKm    = 6378.1
)

type DistanceUnit string

const (
	Miles      DistanceUnit = "mi"
	Kilometers DistanceUnit = "km"
)

func ParseDistanceUnit(s string) (DistanceUnit, error) {
	switch u := DistanceUnit(s); u {
	case Miles, Kilometers:
		return u, nil
	}
	return "", fmt.Errorf("unit must be mi or km, got %q", s)
}

// radians converts a distance into the angle $centerSphere expects.
func (u DistanceUnit) radians(distance float64) float64 {
	if u == Miles {
		return distance / earthRadiusMiles
	}
	return distance / earthRadiusKm
}

// fromMeters is the multiplier $geoNear applies to its meter distances.
func (u DistanceUnit) fromMeters() float64 {
	if u == Miles {
		return 0.000621371
	}
	return 0.001
}

// ParseLatLng parses "lat,lng".
func ParseLatLng(s string) (models.GeoPoint, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return models.GeoPoint{}, fmt.Errorf("expected lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return models.GeoPoint{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return models.GeoPoint{}, fmt.Errorf("invalid longitude %q", lngStr)
	}
	return models.NewPoint(lat, lng), nil
}

// TourDistance is a tour and how far its start is from a point.
type TourDistance struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Distance float64            `json:"distance" bson:"distance"`
}

// Within finds the tours starting inside distance of center. It goes through
// the decorated reader like every other tour read.
func (s *TourService) Within(ctx context.Context, distance float64, center models.GeoPoint, unit DistanceUnit) ([]models.Tour, error) {
	filter := bson.M{"startLocation": bson.M{"$geoWithin": bson.M{
		"$centerSphere": bson.A{center.Coordinates, unit.radians(distance)},
	}}}
	return s.reader.Find(ctx, TourQuery{QueryFeatures: QueryFeatures{Filter: filter}})
}

func distancesPipeline(from models.GeoPoint, unit DistanceUnit) mongo.Pipeline {
	return mongo.Pipeline{
		// $geoNear must be the first stage, so the secret filter goes in its query.
		{{Key: "$geoNear", Value: bson.M{
			"near":               from,
			"distanceField":      "distance",
			"distanceMultiplier": unit.fromMeters(),
			"query":              secretTourFilter(),
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
}

// Distances lists every visible tour with its distance from a point,
// nearest first.
func (s *TourService) Distances(ctx context.Context, from models.GeoPoint, unit DistanceUnit) ([]TourDistance, error) {
	cursor, err := s.collection.Aggregate(ctx, distancesPipeline(from, unit))
	if err != nil {
		return nil, err
	}
	distances := []TourDistance{}
	if err := cursor.All(ctx, &distances); err != nil {
		return nil, err
	}
	return distances, nil
}
