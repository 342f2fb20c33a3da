package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"addressbook/internal/models"
)

// MongoAddresses stores addresses in their own collection and keeps the
// owner's currentAddressId in step with the favorite flag. Pointer moves run
// in a transaction, so the deployment must be a replica set.
type MongoAddresses struct {
	client    *mongo.Client
	addresses *mongo.Collection
	users     *mongo.Collection
}

func NewMongoAddresses(db *mongo.Database) *MongoAddresses {
	return &MongoAddresses{
		client:    db.Client(),
		addresses: db.Collection(addressesCollection),
		users:     db.Collection(usersCollection),
	}
}

func (s *MongoAddresses) Create(ctx context.Context, owner primitive.ObjectID, fields models.AddressFields) (*models.Address, error) {
	a, err := fields.Build(owner, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	a.ID = primitive.NewObjectID()

	err = s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		count, err := s.addresses.CountDocuments(sc, bson.M{"userId": owner}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("count addresses: %w", err)
		}
		if count == 0 {
			a.Favorite = true
		}
		if _, err := s.addresses.InsertOne(sc, a); err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		if a.Favorite {
			return s.markCurrent(sc, owner, a.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *MongoAddresses) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Address, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoAddresses) FindCurrent(ctx context.Context, owner primitive.ObjectID) (*models.Address, error) {
	var u struct {
		CurrentAddressID *primitive.ObjectID `bson:"currentAddressId"`
	}
	err := s.users.FindOne(ctx, bson.M{"_id": owner},
		options.FindOne().SetProjection(bson.M{"currentAddressId": 1}),
	).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u.CurrentAddressID == nil {
		return nil, models.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"_id": *u.CurrentAddressID, "userId": owner})
}

func (s *MongoAddresses) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Address, error) {
	cursor, err := s.addresses.Find(ctx, bson.M{"userId": owner},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer cursor.Close(ctx)

	list := make([]models.Address, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	return list, nil
}

// Update replaces the whole document with the merged record. Concurrent
// updates are last-write-wins.
func (s *MongoAddresses) Update(ctx context.Context, id, owner primitive.ObjectID, patch models.AddressPatch) (*models.Address, error) {
	var merged *models.Address
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		existing, err := s.findOne(sc, bson.M{"_id": id})
		if err != nil {
			return err
		}
		merged, err = mergeOwned(existing, owner, patch, time.Now().UTC())
		if err != nil {
			return err
		}
		res, err := s.addresses.ReplaceOne(sc, bson.M{"_id": id, "userId": owner}, merged)
		if err != nil {
			return fmt.Errorf("replace address: %w", err)
		}
		if res.MatchedCount == 0 {
			return models.ErrNotFound
		}
		if merged.Favorite && !existing.Favorite {
			return s.markCurrent(sc, owner, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *MongoAddresses) Delete(ctx context.Context, id, owner primitive.ObjectID) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		existing, err := s.findOne(sc, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if existing.UserID != owner {
			return models.ErrForbidden
		}
		if _, err := s.addresses.DeleteOne(sc, bson.M{"_id": id, "userId": owner}); err != nil {
			return fmt.Errorf("delete address: %w", err)
		}
		if !existing.Favorite {
			return nil
		}
		return s.promoteLatest(sc, owner)
	})
}

func (s *MongoAddresses) findOne(ctx context.Context, filter bson.M) (*models.Address, error) {
	var a models.Address
	if err := s.addresses.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find address: %w", err)
	}
	return &a, nil
}

func (s *MongoAddresses) markCurrent(sc mongo.SessionContext, owner, id primitive.ObjectID) error {
	_, err := s.addresses.UpdateMany(sc,
		bson.M{"userId": owner, "_id": bson.M{"$ne": id}, "favorite": true},
		bson.M{"$set": bson.M{"favorite": false}},
	)
	if err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	_, err = s.users.UpdateByID(sc, owner, bson.M{
		"$set": bson.M{"currentAddressId": id, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("set current address: %w", err)
	}
	return nil
}

func (s *MongoAddresses) promoteLatest(sc mongo.SessionContext, owner primitive.ObjectID) error {
	var latest models.Address
	err := s.addresses.FindOne(sc, bson.M{"userId": owner},
		options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}),
	).Decode(&latest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		_, err := s.users.UpdateByID(sc, owner, bson.M{
			"$unset": bson.M{"currentAddressId": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		})
		if err != nil {
			return fmt.Errorf("unset current address: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("find latest address: %w", err)
	}

	if _, err := s.addresses.UpdateByID(sc, latest.ID, bson.M{"$set": bson.M{"favorite": true}}); err != nil {
		return fmt.Errorf("promote address: %w", err)
	}
	return s.markCurrent(sc, owner, latest.ID)
}

func (s *MongoAddresses) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
