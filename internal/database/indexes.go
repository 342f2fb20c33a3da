package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func EnsureUserIndexes(ctx context.Context, db *mongo.Database, lg *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	name, err := db.Collection("users").Indexes().CreateOne(ctx, emailIndex)
	if err != nil {
		lg.Error("users index failed", zap.String("index", "email_unique"), zap.Error(err))
		return err
	}
	lg.Info("users index ready", zap.String("index", name))
	return nil
}

// EnsureAddressIndexes covers listing by owner and picking the most recently
// updated address when the current one is deleted.
func EnsureAddressIndexes(ctx context.Context, db *mongo.Database, lg *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("userId_updatedAt"),
		},
	}

	names, err := db.Collection("addresses").Indexes().CreateMany(ctx, indexes)
	if err != nil {
		lg.Error("addresses indexes failed", zap.Error(err))
		return err
	}
	lg.Info("addresses indexes ready", zap.Strings("indexes", names))
	return nil
}
