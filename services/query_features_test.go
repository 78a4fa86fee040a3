package services

import (
	"net/url"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseQueryFeaturesFilters(t *testing.T) {
	values, _ := url.ParseQuery("difficulty=easy&price[lt]=1500&price[gte]=300&secretTour=false&page=2&limit=10")
	qf, err := ParseQueryFeatures(values, TourFields)
	if err != nil {
		t.Fatal(err)
	}
	want := bson.M{
		"difficulty": "easy",
		"price":      bson.M{"$lt": 1500.0, "$gte": 300.0},
		"secretTour": false,
	}
	if !reflect.DeepEqual(qf.Filter, want) {
		t.Errorf("filter = %v, want %v", qf.Filter, want)
	}
	if qf.Skip != 10 || qf.Limit != 10 {
		t.Errorf("skip/limit = %d/%d", qf.Skip, qf.Limit)
	}
}

func TestParseQueryFeaturesRepeatedValuesBecomeIn(t *testing.T) {
	values := url.Values{"difficulty": {"easy", "medium"}}
	qf, err := ParseQueryFeatures(values, TourFields)
	if err != nil {
		t.Fatal(err)
	}
	want := bson.M{"$in": bson.A{"easy", "medium"}}
	if !reflect.DeepEqual(qf.Filter["difficulty"], want) {
		t.Errorf("difficulty = %v", qf.Filter["difficulty"])
	}
}

func TestParseQueryFeaturesDefaults(t *testing.T) {
	qf, err := ParseQueryFeatures(url.Values{}, TourFields)
	if err != nil {
		t.Fatal(err)
	}
	wantSort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	if !reflect.DeepEqual(qf.Sort, wantSort) {
		t.Errorf("sort = %v", qf.Sort)
	}
	if qf.Skip != 0 || qf.Limit != 100 || qf.Projection != nil || len(qf.Filter) != 0 {
		t.Errorf("qf = %+v", qf)
	}
}

func TestParseQueryFeaturesSortAndFields(t *testing.T) {
	values, _ := url.ParseQuery("sort=-ratingsAverage,price&fields=name,price")
	qf, err := ParseQueryFeatures(values, TourFields)
	if err != nil {
		t.Fatal(err)
	}
	wantSort := bson.D{{Key: "ratingsAverage", Value: -1}, {Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	if !reflect.DeepEqual(qf.Sort, wantSort) {
		t.Errorf("sort = %v", qf.Sort)
	}
	if !reflect.DeepEqual(qf.Projection, bson.M{"name": 1, "price": 1}) {
		t.Errorf("projection = %v", qf.Projection)
	}
}

func TestParseQueryFeaturesRejects(t *testing.T) {
	cases := []string{
		"password=x",
		"price[regex]=1",
		"price[gte=1",
		"sort=password",
		"fields=name,-price",
		"page=0",
		"limit=abc",
		"page=9223372036854775807",
		"page=92233720368547759&limit=1000",
	}
	for _, raw := range cases {
		values, _ := url.ParseQuery(raw)
		if _, err := ParseQueryFeatures(values, TourFields); err == nil {
			t.Errorf("%q should be rejected", raw)
		}
	}
}

func TestParseQueryFeaturesObjectIDs(t *testing.T) {
	id := primitive.NewObjectID()
	qf, err := ParseQueryFeatures(url.Values{"tour": {id.Hex()}}, ReviewFields)
	if err != nil {
		t.Fatal(err)
	}
	if qf.Filter["tour"] != id {
		t.Errorf("tour = %#v", qf.Filter["tour"])
	}
}

func TestParseQueryFeaturesCapsLimit(t *testing.T) {
	qf, err := ParseQueryFeatures(url.Values{"limit": {"5000"}}, TourFields)
	if err != nil {
		t.Fatal(err)
	}
	if qf.Limit != maxLimit {
		t.Errorf("limit = %d", qf.Limit)
	}
}

func TestParseQueryFeaturesIgnoresIncludeSecret(t *testing.T) {
	qf, err := ParseQueryFeatures(url.Values{"includeSecret": {"true"}}, TourFields)
	if err != nil {
		t.Fatal(err)
	}
	if len(qf.Filter) != 0 {
		t.Errorf("filter = %v", qf.Filter)
	}
}
