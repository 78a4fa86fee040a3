package services

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultPage  = 1
	defaultLimit = 100
	maxLimit     = 1000
)

// reservedParams never become filters.
var reservedParams = map[string]bool{
	"page":          true,
	"sort":          true,
	"limit":         true,
	"fields":        true,
	"includeSecret": true,
}

var filterOperators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
	"ne":  "$ne",
}

// QueryFeatures is a parsed list request: filter, sort, projection and page.
type QueryFeatures struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Skip       int64
	Limit      int64
}

// ParseQueryFeatures turns URL parameters such as
//
//	?difficulty=easy&price[lt]=1500&sort=-price,name&fields=name,price&page=2&limit=10
//
// into a mongo filter and find options. Only fields listed in allowed can be
// filtered, sorted or projected; anything else is rejected so user input
// never reaches the query as an operator or an unknown path.
func ParseQueryFeatures(values url.Values, allowed map[string]bool) (QueryFeatures, error) {
	qf := QueryFeatures{Filter: bson.M{}}

	for key, vals := range values {
		if reservedParams[key] || len(vals) == 0 {
			continue
		}
		field, op, err := splitFilterKey(key)
		if err != nil {
			return qf, err
		}
		if !allowed[field] {
			return qf, fmt.Errorf("cannot filter on %q", field)
		}

		if op == "" {
			if len(vals) == 1 {
				qf.Filter[field] = filterValue(vals[0])
			} else {
				in := make(bson.A, 0, len(vals))
				for _, v := range vals {
					in = append(in, filterValue(v))
				}
				qf.Filter[field] = bson.M{"$in": in}
			}
			continue
		}

		cond, ok := qf.Filter[field].(bson.M)
		if !ok {
			cond = bson.M{}
			qf.Filter[field] = cond
		}
		cond[op] = filterValue(vals[len(vals)-1])
	}

	sort, err := parseSort(values.Get("sort"), allowed)
	if err != nil {
		return qf, err
	}
	qf.Sort = sort

	if qf.Projection, err = parseFields(values.Get("fields"), allowed); err != nil {
		return qf, err
	}

	page, err := positiveInt(values.Get("page"), defaultPage)
	if err != nil {
		return qf, fmt.Errorf("invalid page: %w", err)
	}
	limit, err := positiveInt(values.Get("limit"), defaultLimit)
	if err != nil {
		return qf, fmt.Errorf("invalid limit: %w", err)
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page-1 > math.MaxInt64/limit {
		return qf, fmt.Errorf("invalid page: %d is out of range", page)
	}
	qf.Limit = limit
	qf.Skip = (page - 1) * limit

	return qf, nil
}

// FindOptions converts the features into options for Collection.Find.
func (qf QueryFeatures) FindOptions() *options.FindOptions {
	opts := options.Find()
	if len(qf.Sort) > 0 {
		opts.SetSort(qf.Sort)
	}
	if len(qf.Projection) > 0 {
		opts.SetProjection(qf.Projection)
	}
	if qf.Skip > 0 {
		opts.SetSkip(qf.Skip)
	}
	if qf.Limit > 0 {
		opts.SetLimit(qf.Limit)
	}
	return opts
}

// splitFilterKey splits "price[gte]" into ("price", "$gte").
func splitFilterKey(key string) (string, string, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "", nil
	}
	if !strings.HasSuffix(key, "]") {
		return "", "", fmt.Errorf("malformed filter %q", key)
	}
	op, ok := filterOperators[key[open+1:len(key)-1]]
	if !ok {
		return "", "", fmt.Errorf("unsupported operator in %q", key)
	}
	return key[:open], op, nil
}

// filterValue types a query string value the way the schema would cast it.
func filterValue(v string) any {
	if len(v) == 24 {
		if id, err := primitive.ObjectIDFromHex(v); err == nil {
			return id
		}
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

func parseSort(s string, allowed map[string]bool) (bson.D, error) {
	if s == "" {
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}, nil
	}
	var sort bson.D
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := 1
		if name, ok := strings.CutPrefix(part, "-"); ok {
			part, dir = name, -1
		}
		if !allowed[part] {
			return nil, fmt.Errorf("cannot sort on %q", part)
		}
		sort = append(sort, bson.E{Key: part, Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: 1}), nil
}

func parseFields(s string, allowed map[string]bool) (bson.M, error) {
	if s == "" {
		return nil, nil
	}
	projection := bson.M{}
	include, exclude := false, false
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value := 1
		if name, ok := strings.CutPrefix(part, "-"); ok {
			part, value = name, 0
			exclude = true
		} else {
			include = true
		}
		if !allowed[part] {
			return nil, fmt.Errorf("cannot select %q", part)
		}
		projection[part] = value
	}
	if include && exclude {
		return nil, fmt.Errorf("fields cannot mix inclusion and exclusion")
	}
	return projection, nil
}

func positiveInt(s string, fallback int64) (int64, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be at least 1, got %d", n)
	}
	return n, nil
}
