package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddressType string

const (
	AddressTypeHome    AddressType = "home"
	AddressTypeOffice  AddressType = "office"
	AddressTypeFriends AddressType = "friends"
	AddressTypeFamily  AddressType = "family"
)

func (t AddressType) Valid() bool {
	switch t {
	case AddressTypeHome, AddressTypeOffice, AddressTypeFriends, AddressTypeFamily:
		return true
	}
	return false
}

// Coordinates is a [longitude, latitude] pair. The order is kept the same in
// storage, JSON and provider calls.
type Coordinates [2]float64

func NewCoordinates(lng, lat float64) Coordinates {
	return Coordinates{lng, lat}
}

func (c Coordinates) Lng() float64 { return c[0] }
func (c Coordinates) Lat() float64 { return c[1] }

func (c Coordinates) Validate() error {
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return Invalid("coordinates", "must be numbers")
	}
	if c[0] < -180 || c[0] > 180 {
		return Invalid("coordinates", "longitude must be between -180 and 180")
	}
	if c[1] < -90 || c[1] > 90 {
		return Invalid("coordinates", "latitude must be between -90 and 90")
	}
	return nil
}

// Near reports whether both components differ by at most tolerance degrees.
func (c Coordinates) Near(other Coordinates, tolerance float64) bool {
	return math.Abs(c[0]-other[0]) <= tolerance && math.Abs(c[1]-other[1]) <= tolerance
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c[0], c[1])
}

const maxAddressFieldLen = 200

// Address is a saved postal location. AddressText and Coordinates always come
// from the same geocoding resolution.
type Address struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	AddressText  string             `bson:"address" json:"address"`
	HouseDetails string             `bson:"houseDetails" json:"houseDetails"`
	Street       string             `bson:"street" json:"street"`
	AddressType  AddressType        `bson:"addressType" json:"addressType"`
	Coordinates  Coordinates        `bson:"coordinates" json:"coordinates"`
	Favorite     bool               `bson:"favorite" json:"favorite"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Label is the short line composed from the user-entered details.
func (a *Address) Label() string {
	parts := make([]string, 0, 2)
	if a.HouseDetails != "" {
		parts = append(parts, a.HouseDetails)
	}
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	return strings.Join(parts, ", ")
}

func (a *Address) Validate() error {
	if strings.TrimSpace(a.AddressText) == "" {
		return Invalid("address", "resolved address text is required")
	}
	if err := a.Coordinates.Validate(); err != nil {
		return err
	}
	if !a.AddressType.Valid() {
		return Invalid("addressType", "must be one of home, office, friends, family")
	}
	if len(a.HouseDetails) > maxAddressFieldLen {
		return Invalid("houseDetails", fmt.Sprintf("must not exceed %d characters", maxAddressFieldLen))
	}
	if len(a.Street) > maxAddressFieldLen {
		return Invalid("street", fmt.Sprintf("must not exceed %d characters", maxAddressFieldLen))
	}
	return nil
}

// AddressFields are the inputs of a new record. Coordinates is nil when the
// caller did not supply any.
type AddressFields struct {
	AddressText  string
	HouseDetails string
	Street       string
	AddressType  AddressType
	Coordinates  *Coordinates
	Favorite     bool
}

// Build returns the record described by f for owner, validated.
func (f AddressFields) Build(owner primitive.ObjectID, now time.Time) (*Address, error) {
	if f.Coordinates == nil {
		return nil, Invalid("coordinates", "coordinates are required")
	}
	addressType := f.AddressType
	if addressType == "" {
		addressType = AddressTypeHome
	}
	a := &Address{
		UserID:       owner,
		AddressText:  strings.TrimSpace(f.AddressText),
		HouseDetails: strings.TrimSpace(f.HouseDetails),
		Street:       strings.TrimSpace(f.Street),
		AddressType:  addressType,
		Coordinates:  *f.Coordinates,
		Favorite:     f.Favorite,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// AddressPatch is a partial update; nil fields are left untouched.
type AddressPatch struct {
	AddressText  *string
	HouseDetails *string
	Street       *string
	AddressType  *AddressType
	Coordinates  *Coordinates
	Favorite     *bool
}

func (p AddressPatch) Empty() bool {
	return p.AddressText == nil && p.HouseDetails == nil && p.Street == nil &&
		p.AddressType == nil && p.Coordinates == nil && p.Favorite == nil
}

// Apply merges p into a copy of a and validates the result. a itself is never
// modified, so a failed merge leaves nothing half-applied.
func (p AddressPatch) Apply(a Address, now time.Time) (*Address, error) {
	merged := a
	if p.AddressText != nil {
		merged.AddressText = strings.TrimSpace(*p.AddressText)
	}
	if p.HouseDetails != nil {
		merged.HouseDetails = strings.TrimSpace(*p.HouseDetails)
	}
	if p.Street != nil {
		merged.Street = strings.TrimSpace(*p.Street)
	}
	if p.AddressType != nil {
		merged.AddressType = *p.AddressType
	}
	if p.Coordinates != nil {
		merged.Coordinates = *p.Coordinates
	}
	if p.Favorite != nil {
		merged.Favorite = *p.Favorite
	}
	merged.UpdatedAt = now
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}
