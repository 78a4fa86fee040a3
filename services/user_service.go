package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tour-server/models"
	"tour-server/storage"
)

const userCacheTTL = 24 * time.Hour

// UserFields can be filtered, sorted or selected on list requests.
var UserFields = map[string]bool{
	"name": true, "email": true, "role": true, "photo": true, "createdAt": true,
}

type UserService struct {
	collection  *mongo.Collection
	redisClient *redis.Client
}

// NewUserService builds the service. redisClient may be nil, in which case
// every lookup goes to MongoDB.
func NewUserService(db *mongo.Database, redisClient *redis.Client) *UserService {
	return &UserService{
		collection:  db.Collection(storage.UsersCollection),
		redisClient: redisClient,
	}
}

func (s *UserService) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

// activeFilter excludes deactivated accounts from every read.
func activeFilter(filter bson.M) bson.M {
	out := bson.M{"active": bson.M{"$ne": false}}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

func userCacheKey(id primitive.ObjectID) string {
	return "user:" + id.Hex()
}

// GetUser retrieves an active user from Redis or MongoDB. The cached copy
// never contains the password or reset token.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if s.redisClient != nil {
		userJSON, err := s.redisClient.Get(ctx, userCacheKey(id)).Result()
		switch {
		case err == nil:
			var user models.User
			if err := json.Unmarshal([]byte(userJSON), &user); err == nil {
				return &user, nil
			}
			log.Printf("Failed to unmarshal cached user %s: %v", id.Hex(), err)
		case !errors.Is(err, redis.Nil):
			log.Printf("Redis get user %s failed: %v", id.Hex(), err)
		}
	}

	var user models.User
	err := s.collection.FindOne(ctx, activeFilter(bson.M{"_id": id})).Decode(&user)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, &user)
	return &user, nil
}

func (s *UserService) cache(ctx context.Context, user *models.User) {
	if s.redisClient == nil {
		return
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		log.Printf("Failed to marshal user %s: %v", user.ID.Hex(), err)
		return
	}
	if err := s.redisClient.Set(ctx, userCacheKey(user.ID), userJSON, userCacheTTL).Err(); err != nil {
		log.Printf("Redis set user %s failed: %v", user.ID.Hex(), err)
	}
}

// invalidate drops the cached copy after any write to the account.
func (s *UserService) invalidate(ctx context.Context, id primitive.ObjectID) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, userCacheKey(id)).Err(); err != nil {
		log.Printf("Redis del user %s failed: %v", id.Hex(), err)
	}
}

// FindByEmail loads an active user with its password hash, bypassing the
// cache.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, activeFilter(bson.M{"email": email})).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindWithPassword loads an active user by id with its password hash.
func (s *UserService) FindWithPassword(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, activeFilter(bson.M{"_id": id})).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByResetToken returns the user whose hashed reset token matches and has
// not expired.
func (s *UserService) FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*models.User, error) {
	var user models.User
	filter := activeFilter(bson.M{
		"passwordResetToken":   hashedToken,
		"passwordResetExpires": bson.M{"$gt": now},
	})
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) Create(ctx context.Context, user *models.User) error {
	result, err := s.collection.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *UserService) List(ctx context.Context, qf QueryFeatures) ([]models.User, error) {
	cursor, err := s.collection.Find(ctx, activeFilter(qf.Filter), qf.FindOptions())
	if err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Update applies a $set and returns the updated user.
func (s *UserService) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.collection.FindOneAndUpdate(ctx, activeFilter(bson.M{"_id": id}), bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return &user, nil
}

// SetPassword stores a new hash, clears any reset token and stamps
// passwordChangedAt one second in the past so a token issued right after
// still verifies.
func (s *UserService) SetPassword(ctx context.Context, id primitive.ObjectID, hash string, now time.Time) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"password": hash, "passwordChangedAt": now.Add(-time.Second)},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *UserService) SetResetToken(ctx context.Context, id primitive.ObjectID, hashedToken string, expires time.Time) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"passwordResetToken": hashedToken, "passwordResetExpires": expires},
	})
	return err
}

func (s *UserService) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
	return err
}

// Deactivate hides the account from every read without deleting it.
func (s *UserService) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *UserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	s.invalidate(ctx, id)
	return nil
}

// PublicProfiles implements ProfileDirectory.
func (s *UserService) PublicProfiles(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicProfile, error) {
	profiles := make(map[primitive.ObjectID]models.PublicProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1, "photo": 1, "role": 1})
	cursor, err := s.collection.Find(ctx, activeFilter(bson.M{"_id": bson.M{"$in": ids}}), opts)
	if err != nil {
		return nil, err
	}
	var found []models.PublicProfile
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	for _, p := range found {
		profiles[p.ID] = p
	}
	return profiles, nil
}
