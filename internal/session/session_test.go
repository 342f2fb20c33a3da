package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/models"
	"addressbook/internal/store"
)

const testSecret = "test-secret"

func setup(t *testing.T) (*Store, *store.MemoryUsers, *models.User) {
	t.Helper()
	users, _ := store.NewMemory()
	u, err := users.Create(context.Background(), &models.User{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)
	return New(users, testSecret, time.Hour, nil), users, u
}

func TestIssueThenValidate(t *testing.T) {
	s, _, u := setup(t)
	ctx := context.Background()

	token, expiresAt, err := s.Issue(ctx, u.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	id, err := s.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "asha@example.com", id.User.Email)
}

func TestSecondIssueSupersedesFirst(t *testing.T) {
	s, _, u := setup(t)
	ctx := context.Background()

	first, _, err := s.Issue(ctx, u.ID)
	require.NoError(t, err)
	second, _, err := s.Issue(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = s.Validate(ctx, first)
	assert.ErrorIs(t, err, models.ErrSuperseded)

	_, err = s.Validate(ctx, second)
	assert.NoError(t, err)
}

func TestValidateRejections(t *testing.T) {
	s, _, u := setup(t)
	ctx := context.Background()

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: u.ID.Hex(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: u.ID.Hex()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong signature", forged},
		{"none algorithm", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Validate(ctx, tt.token)
			assert.ErrorIs(t, err, models.ErrUnauthenticated)
		})
	}
}

func TestValidateExpired(t *testing.T) {
	s, _, u := setup(t)
	ctx := context.Background()

	token, _, err := s.Issue(ctx, u.ID)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrExpired)
}

func TestValidateUnknownUser(t *testing.T) {
	users, _ := store.NewMemory()
	s := New(users, testSecret, time.Hour, nil)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   primitive.NewObjectID().Hex(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	claims.UserID = claims.Subject
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = s.Validate(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestRevoke(t *testing.T) {
	s, users, u := setup(t)
	ctx := context.Background()

	token, _, err := s.Issue(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, u.ID, token))

	_, err = s.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrSuperseded)

	stored, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Token)
}
