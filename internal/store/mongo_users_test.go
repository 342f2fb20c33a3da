package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"addressbook/internal/models"
)

// toDoc renders v the way the driver would store it, for mocked replies.
func toDoc(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func TestMongoUsersCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("lowercases email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		u, err := NewMongoUsers(mt.DB).Create(context.Background(), &models.User{Name: "Asha", Email: "Asha@Example.com"})
		require.NoError(mt, err)
		assert.Equal(mt, "asha@example.com", u.Email)
		assert.False(mt, u.ID.IsZero())
		assert.False(mt, u.CreatedAt.IsZero())
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: users index: email_unique",
		}))

		_, err := NewMongoUsers(mt.DB).Create(context.Background(), &models.User{Name: "Asha", Email: "asha@example.com"})
		assert.ErrorIs(mt, err, models.ErrEmailTaken)
	})

	mt.Run("other write errors pass through", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 121, Message: "document failed validation"}))

		_, err := NewMongoUsers(mt.DB).Create(context.Background(), &models.User{Email: "asha@example.com"})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, models.ErrEmailTaken)
	})
}

func TestMongoUsersFind(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		want := models.User{
			ID:        primitive.NewObjectID(),
			Name:      "Asha",
			Email:     "asha@example.com",
			Token:     "jti",
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt.T, want)))

		got, err := NewMongoUsers(mt.DB).FindByEmail(context.Background(), "ASHA@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, want.ID, got.ID)
		assert.Equal(mt, "jti", got.Token)
	})

	mt.Run("missing", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := NewMongoUsers(mt.DB).FindByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})
}

func TestMongoUsersSetSessionUnknownUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no match", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := NewMongoUsers(mt.DB).SetSession(context.Background(), primitive.NewObjectID(), "jti", time.Now().Add(time.Hour))
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("match", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := NewMongoUsers(mt.DB).SetSession(context.Background(), primitive.NewObjectID(), "jti", time.Now().Add(time.Hour))
		assert.NoError(mt, err)
	})
}
