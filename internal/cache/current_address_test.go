package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/models"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return client, server
}

func sampleAddress(owner primitive.ObjectID) *models.Address {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &models.Address{
		ID:          primitive.NewObjectID(),
		UserID:      owner,
		AddressText: "Cubbon Park, Bengaluru",
		Street:      "Kasturba Road",
		AddressType: models.AddressTypeOffice,
		Coordinates: models.NewCoordinates(77.59, 12.97),
		Favorite:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRedisSetGetInvalidate(t *testing.T) {
	client, server := newTestRedis(t)
	c := NewRedis(client, "", 5*time.Minute)
	ctx := context.Background()
	owner := primitive.NewObjectID()

	_, version, ok, err := c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, version)

	a := sampleAddress(owner)
	require.NoError(t, c.Set(ctx, owner, a, version))

	ttl := server.TTL("current_address:" + owner.Hex())
	assert.True(t, ttl > 0 && ttl <= 5*time.Minute, "unexpected ttl %v", ttl)

	got, _, ok, err := c.Get(ctx, owner)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)

	require.NoError(t, c.Invalidate(ctx, owner))
	_, version, ok, err = c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), version)

	require.NoError(t, c.Set(ctx, owner, a, version))
	_, _, ok, err = c.Get(ctx, owner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSetSkipsAfterInvalidate(t *testing.T) {
	client, server := newTestRedis(t)
	c := NewRedis(client, "", 5*time.Minute)
	ctx := context.Background()
	owner := primitive.NewObjectID()

	_, version, ok, err := c.Get(ctx, owner)
	require.NoError(t, err)
	require.False(t, ok)

	// A save lands between the miss and the write back.
	require.NoError(t, c.Invalidate(ctx, owner))

	require.NoError(t, c.Set(ctx, owner, sampleAddress(owner), version))
	assert.False(t, server.Exists("current_address:"+owner.Hex()))

	_, _, ok, err = c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl := server.TTL("current_address:ver:" + owner.Hex())
	assert.True(t, ttl > 0 && ttl <= versionTTL, "unexpected version ttl %v", ttl)
}

func TestRedisEntryExpires(t *testing.T) {
	client, server := newTestRedis(t)
	c := NewRedis(client, "addr", time.Minute)
	ctx := context.Background()
	owner := primitive.NewObjectID()

	require.NoError(t, c.Set(ctx, owner, sampleAddress(owner), 0))
	server.FastForward(2 * time.Minute)

	_, _, ok, err := c.Get(ctx, owner)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisUnavailable(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	client := red.NewClient(&red.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, "", time.Minute)

	_, _, _, err = c.Get(context.Background(), primitive.NewObjectID())
	assert.Error(t, err)
}
