// Package session enforces the single-active-session policy: each user has
// exactly one accepted token, stored on the user record and compared against
// the bearer token on every request.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"addressbook/internal/models"
)

// Users is the part of the user store the session store needs.
type Users interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SetSession(ctx context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error
	ClearSession(ctx context.Context, id primitive.ObjectID, token string) error
}

// Claims are the signed contents of a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Identity is the result of a successful validation.
type Identity struct {
	UserID primitive.ObjectID
	User   *models.User
	Token  string
}

type Store struct {
	users  Users
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func New(users Users, secret string, ttl time.Duration, lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		log:    lg.Named("session"),
	}
}

// Issue signs a new token for userID and makes it the only accepted token for
// that user. Any token issued earlier stops validating with ErrSuperseded.
func (s *Store) Issue(ctx context.Context, userID primitive.ObjectID) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating token id: %w", err)
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID.Hex(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	if err := s.users.SetSession(ctx, userID, token, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("storing session: %w", err)
	}
	s.log.Debug("session issued", zap.String("user_id", userID.Hex()), zap.Time("expires_at", expiresAt))
	return token, expiresAt, nil
}

// Validate resolves a bearer token to its owner. It fails with
// models.ErrUnauthenticated for absent, malformed or badly signed tokens,
// models.ErrExpired past expiry and models.ErrSuperseded when the token is no
// longer the one stored for the user.
func (s *Store) Validate(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: invalid user claim", models.ErrUnauthenticated)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) != 1 {
		return nil, models.ErrSuperseded
	}
	if user.TokenExpiresAt != nil && !s.now().Before(*user.TokenExpiresAt) {
		return nil, models.ErrExpired
	}

	return &Identity{UserID: userID, User: user, Token: token}, nil
}

// Revoke clears the stored token if it is still token. A token that was
// already superseded leaves the newer session alone.
func (s *Store) Revoke(ctx context.Context, userID primitive.ObjectID, token string) error {
	if err := s.users.ClearSession(ctx, userID, token); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	s.log.Debug("session revoked", zap.String("user_id", userID.Hex()))
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
