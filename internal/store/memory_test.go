package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/models"
)

func ptr[T any](v T) *T { return &v }

func newUser(t *testing.T, users *MemoryUsers, email string) *models.User {
	t.Helper()
	u, err := users.Create(context.Background(), &models.User{Name: "Asha", Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func fieldsAt(lng, lat float64) models.AddressFields {
	return models.AddressFields{
		AddressText: "Somewhere, India",
		Street:      "Main Road",
		Coordinates: ptr(models.NewCoordinates(lng, lat)),
	}
}

// tick makes timestamps strictly increasing between operations.
func tick(users *MemoryUsers) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	users.db.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestMemoryUsersEmailUnique(t *testing.T) {
	users, _ := NewMemory()
	newUser(t, users, "asha@example.com")

	_, err := users.Create(context.Background(), &models.User{Email: "ASHA@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	found, err := users.FindByEmail(context.Background(), "Asha@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", found.Email)
}

func TestMemoryUsersClearSessionOnlyCurrent(t *testing.T) {
	ctx := context.Background()
	users, _ := NewMemory()
	u := newUser(t, users, "a@example.com")

	require.NoError(t, users.SetSession(ctx, u.ID, "old", time.Now().Add(time.Hour)))
	require.NoError(t, users.SetSession(ctx, u.ID, "new", time.Now().Add(time.Hour)))
	require.NoError(t, users.ClearSession(ctx, u.ID, "old"))

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Token)

	require.NoError(t, users.ClearSession(ctx, u.ID, "new"))
	got, _ = users.FindByID(ctx, u.ID)
	assert.Empty(t, got.Token)
	assert.Nil(t, got.TokenExpiresAt)

	assert.ErrorIs(t, users.SetSession(ctx, primitive.NewObjectID(), "t", time.Now()), models.ErrNotFound)
}

func TestMemoryAddressesFirstIsCurrent(t *testing.T) {
	ctx := context.Background()
	users, addresses := NewMemory()
	u := newUser(t, users, "a@example.com")

	_, err := addresses.FindCurrent(ctx, u.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	first, err := addresses.Create(ctx, u.ID, fieldsAt(77.59, 12.97))
	require.NoError(t, err)
	assert.True(t, first.Favorite)

	second, err := addresses.Create(ctx, u.ID, fieldsAt(72.87, 19.07))
	require.NoError(t, err)
	assert.False(t, second.Favorite)

	current, err := addresses.FindCurrent(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, current.ID)

	again, err := addresses.FindCurrent(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, current, again)

	owner, _ := users.FindByID(ctx, u.ID)
	require.NotNil(t, owner.CurrentAddressID)
	assert.Equal(t, first.ID, *owner.CurrentAddressID)
}

func TestMemoryAddressesCreateRequiresCoordinates(t *testing.T) {
	users, addresses := NewMemory()
	u := newUser(t, users, "a@example.com")

	f := fieldsAt(0, 0)
	f.Coordinates = nil
	_, err := addresses.Create(context.Background(), u.ID, f)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	list, err := addresses.ListByOwner(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryAddressesFavoriteMovesCurrent(t *testing.T) {
	ctx := context.Background()
	users, addresses := NewMemory()
	u := newUser(t, users, "a@example.com")

	first, _ := addresses.Create(ctx, u.ID, fieldsAt(77.59, 12.97))
	second, _ := addresses.Create(ctx, u.ID, fieldsAt(72.87, 19.07))

	updated, err := addresses.Update(ctx, second.ID, u.ID, models.AddressPatch{Favorite: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Favorite)

	old, _ := addresses.FindByID(ctx, first.ID)
	assert.False(t, old.Favorite)

	current, err := addresses.FindCurrent(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	_, err = addresses.Update(ctx, second.ID, u.ID, models.AddressPatch{Favorite: ptr(false)})
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestMemoryAddressesOwnership(t *testing.T) {
	ctx := context.Background()
	users, addresses := NewMemory()
	a := newUser(t, users, "a@example.com")
	b := newUser(t, users, "b@example.com")

	addr, err := addresses.Create(ctx, b.ID, fieldsAt(77.59, 12.97))
	require.NoError(t, err)

	_, err = addresses.Update(ctx, addr.ID, a.ID, models.AddressPatch{Street: ptr("Hijacked")})
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.ErrorIs(t, addresses.Delete(ctx, addr.ID, a.ID), models.ErrForbidden)

	unchanged, err := addresses.FindByID(ctx, addr.ID)
	require.NoError(t, err)
	assert.Equal(t, addr, unchanged)

	_, err = addresses.Update(ctx, primitive.NewObjectID(), a.ID, models.AddressPatch{Street: ptr("x")})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, addresses.Delete(ctx, primitive.NewObjectID(), a.ID), models.ErrNotFound)
}

func TestMemoryAddressesDeletePromotesLatest(t *testing.T) {
	ctx := context.Background()
	users, addresses := NewMemory()
	tick(users)
	u := newUser(t, users, "a@example.com")

	first, _ := addresses.Create(ctx, u.ID, fieldsAt(77.59, 12.97))
	second, _ := addresses.Create(ctx, u.ID, fieldsAt(72.87, 19.07))
	third, _ := addresses.Create(ctx, u.ID, fieldsAt(88.36, 22.57))
	_, err := addresses.Update(ctx, second.ID, u.ID, models.AddressPatch{Street: ptr("Linking Road")})
	require.NoError(t, err)

	require.NoError(t, addresses.Delete(ctx, first.ID, u.ID))
	current, err := addresses.FindCurrent(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
	assert.True(t, current.Favorite)

	require.NoError(t, addresses.Delete(ctx, second.ID, u.ID))
	current, err = addresses.FindCurrent(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, third.ID, current.ID)

	require.NoError(t, addresses.Delete(ctx, third.ID, u.ID))
	_, err = addresses.FindCurrent(ctx, u.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryAddressesFailedUpdateLeavesRecord(t *testing.T) {
	ctx := context.Background()
	users, addresses := NewMemory()
	u := newUser(t, users, "a@example.com")
	addr, _ := addresses.Create(ctx, u.ID, fieldsAt(77.59, 12.97))

	_, err := addresses.Update(ctx, addr.ID, u.ID, models.AddressPatch{
		Street:      ptr("New Street"),
		Coordinates: ptr(models.NewCoordinates(500, 0)),
	})
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	stored, _ := addresses.FindByID(ctx, addr.ID)
	assert.Equal(t, addr, stored)
}
