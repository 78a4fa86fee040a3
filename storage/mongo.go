package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ToursCollection    = "tours"
	ReviewsCollection  = "reviews"
	UsersCollection    = "users"
	BookingsCollection = "bookings"
)

// ConnectMongo opens a client, checks it with a ping and returns the
// application database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Println("Connected to MongoDB")
	return client, client.Database(database), nil
}

// IndexOwner is implemented by every service that needs indexes on its
// collection.
type IndexOwner interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every owner, stopping at the first
// failure.
func EnsureIndexes(ctx context.Context, owners ...IndexOwner) error {
	for _, owner := range owners {
		if err := owner.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
