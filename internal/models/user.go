package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents the application user account. Token holds the single
// session token currently accepted for the user.
type User struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name             string              `bson:"name" json:"name"`
	Email            string              `bson:"email" json:"email"`
	Phone            string              `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash     string              `bson:"passwordHash" json:"-"`
	Token            string              `bson:"token,omitempty" json:"-"`
	TokenExpiresAt   *time.Time          `bson:"tokenExpiresAt,omitempty" json:"-"`
	CurrentAddressID *primitive.ObjectID `bson:"currentAddressId,omitempty" json:"currentAddressId,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// PublicUser is the projection of a user that leaves the service.
type PublicUser struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone,omitempty"`
	CurrentAddressID *string `json:"currentAddressId,omitempty"`
}

func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:    u.ID.Hex(),
		Name:  u.Name,
		Email: u.Email,
		Phone: u.Phone,
	}
	if u.CurrentAddressID != nil {
		id := u.CurrentAddressID.Hex()
		p.CurrentAddressID = &id
	}
	return p
}
