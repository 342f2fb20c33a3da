// Package store persists users and their addresses. Every address mutation
// is owner-checked here as well as in the service layer.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/models"
)

type UserStore interface {
	// Create fails with models.ErrEmailTaken when the email is registered.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// SetSession overwrites the stored token in a single write.
	SetSession(ctx context.Context, id primitive.ObjectID, token string, expiresAt time.Time) error
	// ClearSession removes the stored token only while it still equals token.
	ClearSession(ctx context.Context, id primitive.ObjectID, token string) error
}

// AddressStore keeps exactly one favorite address per owner whenever the
// owner has any. The favorite is also the owner's current address.
type AddressStore interface {
	Create(ctx context.Context, owner primitive.ObjectID, fields models.AddressFields) (*models.Address, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Address, error)
	FindCurrent(ctx context.Context, owner primitive.ObjectID) (*models.Address, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Address, error)
	Update(ctx context.Context, id, owner primitive.ObjectID, patch models.AddressPatch) (*models.Address, error)
	Delete(ctx context.Context, id, owner primitive.ObjectID) error
}

// errCurrentUnset is returned when a patch clears the favorite flag of the
// current address.
var errCurrentUnset = models.Invalid("favorite", "mark another address as favorite instead")

// mergeOwned applies patch to existing after checking ownership. It is shared
// by both implementations so they agree on every rule.
func mergeOwned(existing *models.Address, owner primitive.ObjectID, patch models.AddressPatch, now time.Time) (*models.Address, error) {
	if existing.UserID != owner {
		return nil, models.ErrForbidden
	}
	merged, err := patch.Apply(*existing, now)
	if err != nil {
		return nil, err
	}
	if existing.Favorite && !merged.Favorite {
		return nil, errCurrentUnset
	}
	return merged, nil
}
