package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"addressbook/internal/models"
)

const (
	usersCollection     = "users"
	addressesCollection = "addresses"
)

type MongoUsers struct {
	users *mongo.Collection
}

func NewMongoUsers(db *mongo.Database) *MongoUsers {
	return &MongoUsers{users: db.Collection(usersCollection)}
}

func (s *MongoUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	created := *u
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	created.Email = strings.ToLower(created.Email)
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &created, nil
}

func (s *MongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *MongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *MongoUsers) SetSession(ctx context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error {
	res, err := s.users.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"token":          token,
			"tokenExpiresAt": expiresAt,
			"updatedAt":      time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *MongoUsers) ClearSession(ctx context.Context, id primitive.ObjectID, token string) error {
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": id, "token": token}, bson.M{
		"$unset": bson.M{"token": "", "tokenExpiresAt": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
