package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tour-server/models"
)

// recordingReader returns canned tours and remembers the last query.
type recordingReader struct {
	tours []models.Tour
	last  TourQuery
}

func (r *recordingReader) Find(_ context.Context, q TourQuery) ([]models.Tour, error) {
	r.last = q
	out := make([]models.Tour, len(r.tours))
	copy(out, r.tours)
	return out, nil
}

type fakeProfiles map[primitive.ObjectID]models.PublicProfile

func (f fakeProfiles) PublicProfiles(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicProfile, error) {
	out := make(map[primitive.ObjectID]models.PublicProfile)
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestExcludeSecretToursEmptyFilter(t *testing.T) {
	base := &recordingReader{}
	if _, err := ExcludeSecretTours(base).Find(context.Background(), TourQuery{}); err != nil {
		t.Fatal(err)
	}
	want := bson.M{"secretTour": bson.M{"$ne": true}}
	if !reflect.DeepEqual(base.last.Filter, want) {
		t.Errorf("filter = %v, want %v", base.last.Filter, want)
	}
}

func TestExcludeSecretToursKeepsCallerFilter(t *testing.T) {
	base := &recordingReader{}
	filter := bson.M{"difficulty": "easy"}
	q := TourQuery{QueryFeatures: QueryFeatures{Filter: filter}}
	if _, err := ExcludeSecretTours(base).Find(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	and, ok := base.last.Filter["$and"].(bson.A)
	if !ok || len(and) != 2 {
		t.Fatalf("filter = %v", base.last.Filter)
	}
	if len(filter) != 1 {
		t.Errorf("caller filter mutated: %v", filter)
	}
}

func TestExcludeSecretToursOverride(t *testing.T) {
	base := &recordingReader{}
	q := TourQuery{QueryFeatures: QueryFeatures{Filter: bson.M{"difficulty": "easy"}}, IncludeSecret: true}
	if _, err := ExcludeSecretTours(base).Find(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if _, ok := base.last.Filter["$and"]; ok {
		t.Errorf("override should leave the filter alone, got %v", base.last.Filter)
	}
}

func TestPopulateGuidesKeepsOrder(t *testing.T) {
	g1, g2, gone := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	profiles := fakeProfiles{
		g1: {ID: g1, Name: "Lead", Role: models.RoleLeadGuide},
		g2: {ID: g2, Name: "Guide", Role: models.RoleGuide},
	}
	base := &recordingReader{tours: []models.Tour{
		{Name: "A", Guides: []primitive.ObjectID{g2, gone, g1}},
		{Name: "B", Guides: []primitive.ObjectID{g1}},
		{Name: "C"},
	}}

	tours, err := PopulateGuides(profiles)(base).Find(context.Background(), TourQuery{})
	if err != nil {
		t.Fatal(err)
	}
	names := func(ps []models.PublicProfile) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name)
		}
		return out
	}
	if got := names(tours[0].GuideProfiles); !reflect.DeepEqual(got, []string{"Guide", "Lead"}) {
		t.Errorf("tour A guides = %v", got)
	}
	if got := names(tours[1].GuideProfiles); !reflect.DeepEqual(got, []string{"Lead"}) {
		t.Errorf("tour B guides = %v", got)
	}
	if len(tours[2].GuideProfiles) != 0 {
		t.Errorf("tour C guides = %v", tours[2].GuideProfiles)
	}
}

type failingProfiles struct{}

func (failingProfiles) PublicProfiles(context.Context, []primitive.ObjectID) (map[primitive.ObjectID]models.PublicProfile, error) {
	return nil, errors.New("users down")
}

func TestPopulateGuidesPropagatesErrors(t *testing.T) {
	base := &recordingReader{tours: []models.Tour{{Guides: []primitive.ObjectID{primitive.NewObjectID()}}}}
	if _, err := PopulateGuides(failingProfiles{})(base).Find(context.Background(), TourQuery{}); err == nil {
		t.Error("expected error")
	}
}

func TestDecorateTourReaderOrder(t *testing.T) {
	var calls []string
	trace := func(name string) TourReadDecorator {
		return func(next TourReader) TourReader {
			return TourReaderFunc(func(ctx context.Context, q TourQuery) ([]models.Tour, error) {
				calls = append(calls, name+">")
				tours, err := next.Find(ctx, q)
				calls = append(calls, "<"+name)
				return tours, err
			})
		}
	}
	r := DecorateTourReader(&recordingReader{}, trace("outer"), trace("inner"))
	if _, err := r.Find(context.Background(), TourQuery{}); err != nil {
		t.Fatal(err)
	}
	want := []string{"outer>", "inner>", "<inner", "<outer"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestTimeTourQueriesPassesThrough(t *testing.T) {
	base := &recordingReader{tours: []models.Tour{{Name: "A"}}}
	tours, err := TimeTourQueries(base).Find(context.Background(), TourQuery{IncludeSecret: true})
	if err != nil || len(tours) != 1 || !base.last.IncludeSecret {
		t.Errorf("tours = %v, err = %v, query = %+v", tours, err, base.last)
	}
}

func TestDefaultChainHidesSecretAndPopulates(t *testing.T) {
	g := primitive.NewObjectID()
	base := &recordingReader{tours: []models.Tour{{Name: "A", Guides: []primitive.ObjectID{g}}}}
	r := DecorateTourReader(base, TimeTourQueries, ExcludeSecretTours, PopulateGuides(fakeProfiles{g: {ID: g, Name: "G"}}))

	tours, err := r.Find(context.Background(), TourQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := base.last.Filter["secretTour"]; !ok {
		t.Errorf("filter = %v", base.last.Filter)
	}
	if len(tours[0].GuideProfiles) != 1 || tours[0].GuideProfiles[0].Name != "G" {
		t.Errorf("guides = %v", tours[0].GuideProfiles)
	}
}

func TestParseLatLng(t *testing.T) {
	p, err := ParseLatLng("34.111745,-118.113491")
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != "Point" || p.Coordinates[0] != -118.113491 || p.Coordinates[1] != 34.111745 {
		t.Errorf("point = %+v", p)
	}
	for _, bad := range []string{"", "34.1", "a,b", "91,0", "0,181"} {
		if _, err := ParseLatLng(bad); err == nil {
			t.Errorf("ParseLatLng(%q) should fail", bad)
		}
	}
}

func TestDistanceUnit(t *testing.T) {
	if _, err := ParseDistanceUnit("yards"); err == nil {
		t.Error("yards should be rejected")
	}
	if got := Miles.radians(3963.2); got != 1 {
		t.Errorf("mi radians = %v", got)
	}
	if got := Kilometers.radians(6378.1); got != 1 {
		t.Errorf("km radians = %v", got)
	}
	if Miles.fromMeters() != 0.000621371 || Kilometers.fromMeters() != 0.001 {
		t.Error("unexpected multipliers")
	}
}

func TestDistancesPipelineHidesSecret(t *testing.T) {
	p := distancesPipeline(models.NewPoint(1, 2), Kilometers)
	if p[0][0].Key != "$geoNear" {
		t.Fatalf("first stage = %s", p[0][0].Key)
	}
	stage := p[0][0].Value.(bson.M)
	if !reflect.DeepEqual(stage["query"], bson.M{"secretTour": bson.M{"$ne": true}}) {
		t.Errorf("query = %v", stage["query"])
	}
}
