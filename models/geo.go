package models

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"omitempty,len=2"`
}

// Location is a GeoJSON point with the descriptive fields tours carry for
// their start location and waypoints.
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"omitempty,len=2"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Day         int       `json:"day,omitempty" bson:"day,omitempty" validate:"gte=0"`
}

// NewPoint builds a GeoJSON point from a latitude/longitude pair.
func NewPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (l *Location) normalize() {
	if l.Type == "" {
		l.Type = "Point"
	}
}
