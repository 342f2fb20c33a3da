// Package cache keeps a short-lived copy of each owner's current address.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"addressbook/internal/models"
)

const defaultPrefix = "current_address"

// CurrentAddress caches the result of the current-address lookup per owner.
// Every address mutation must call Invalidate for the owner.
//
// Get returns the owner's cache version alongside the entry. A reader that
// missed passes that version to Set, which writes only while no Invalidate
// has happened since, so a lookup that raced a save cannot restore the old
// address.
type CurrentAddress interface {
	Get(ctx context.Context, owner primitive.ObjectID) (a *models.Address, version int64, ok bool, err error)
	Set(ctx context.Context, owner primitive.ObjectID, a *models.Address, version int64) error
	Invalidate(ctx context.Context, owner primitive.ObjectID) error
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, addr, password string, db int, lg *zap.Logger) (*red.Client, error) {
	client := red.NewClient(&red.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if lg != nil {
		lg.Info("Redis connection established", zap.String("addr", addr), zap.Int("db", db))
	}
	return client, nil
}

// versionTTL bounds how long an owner's version counter outlives its last
// invalidation. It only has to exceed the duration of one store lookup.
const versionTTL = 24 * time.Hour

// setIfVersion writes the entry only when the version counter still holds
// the value the reader saw. A missing counter reads as 0.
var setIfVersion = red.NewScript(`
local current = redis.call("GET", KEYS[2])
if current == false then current = "0" end
if current ~= ARGV[2] then return 0 end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

type Redis struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *red.Client, keyPrefix string, ttl time.Duration) *Redis {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(owner primitive.ObjectID) string {
	return r.prefix + ":" + owner.Hex()
}

func (r *Redis) versionKey(owner primitive.ObjectID) string {
	return r.prefix + ":ver:" + owner.Hex()
}

func (r *Redis) Get(ctx context.Context, owner primitive.ObjectID) (*models.Address, int64, bool, error) {
	vals, err := r.client.MGet(ctx, r.key(owner), r.versionKey(owner)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("get current address: %w", err)
	}

	var version int64
	if v, ok := vals[1].(string); ok {
		version, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, 0, false, fmt.Errorf("decode current address version: %w", err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, false, nil
	}
	var a models.Address
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, version, false, fmt.Errorf("decode current address: %w", err)
	}
	return &a, version, true, nil
}

// Set stores a unless the owner was invalidated after version was read.
func (r *Redis) Set(ctx context.Context, owner primitive.ObjectID, a *models.Address, version int64) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode current address: %w", err)
	}
	keys := []string{r.key(owner), r.versionKey(owner)}
	err = setIfVersion.Run(ctx, r.client, keys, string(raw), version, r.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("set current address: %w", err)
	}
	return nil
}

// Invalidate drops the entry and bumps the owner's version in one
// transaction.
func (r *Redis) Invalidate(ctx context.Context, owner primitive.ObjectID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.Incr(ctx, r.versionKey(owner))
		pipe.Expire(ctx, r.versionKey(owner), versionTTL)
		pipe.Del(ctx, r.key(owner))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate current address: %w", err)
	}
	return nil
}

// Nop is used when no Redis address is configured.
type Nop struct{}

func (Nop) Get(context.Context, primitive.ObjectID) (*models.Address, int64, bool, error) {
	return nil, 0, false, nil
}

func (Nop) Set(context.Context, primitive.ObjectID, *models.Address, int64) error { return nil }

func (Nop) Invalidate(context.Context, primitive.ObjectID) error { return nil }
