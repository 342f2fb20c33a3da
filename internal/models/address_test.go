package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func ptr[T any](v T) *T { return &v }

func validFields() AddressFields {
	return AddressFields{
		AddressText:  "MG Road, Bengaluru, Karnataka, India",
		HouseDetails: " Flat 4B ",
		Street:       "MG Road",
		Coordinates:  ptr(NewCoordinates(77.59, 12.97)),
	}
}

func TestCoordinatesKeepLongitudeFirst(t *testing.T) {
	c := NewCoordinates(77.59, 12.97)
	assert.Equal(t, 77.59, c.Lng())
	assert.Equal(t, 12.97, c.Lat())

	body, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `[77.59, 12.97]`, string(body))

	raw, err := bson.Marshal(bson.M{"coordinates": c})
	require.NoError(t, err)
	var decoded struct {
		Coordinates Coordinates `bson:"coordinates"`
	}
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, c, decoded.Coordinates)
}

func TestCoordinatesValidate(t *testing.T) {
	assert.NoError(t, NewCoordinates(-180, 90).Validate())
	assert.ErrorIs(t, NewCoordinates(181, 0).Validate(), ErrValidationFailed)
	assert.ErrorIs(t, NewCoordinates(0, -91).Validate(), ErrValidationFailed)
	assert.True(t, NewCoordinates(77.59, 12.97).Near(NewCoordinates(77.5901, 12.9699), 0.001))
	assert.False(t, NewCoordinates(77.59, 12.97).Near(NewCoordinates(77.7, 12.97), 0.001))
}

func TestBuildRequiresCoordinates(t *testing.T) {
	f := validFields()
	f.Coordinates = nil

	_, err := f.Build(primitive.NewObjectID(), time.Now())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "coordinates", verr.Field)
}

func TestBuildDefaultsAndTrims(t *testing.T) {
	owner := primitive.NewObjectID()
	a, err := validFields().Build(owner, time.Now())
	require.NoError(t, err)
	assert.Equal(t, owner, a.UserID)
	assert.Equal(t, AddressTypeHome, a.AddressType)
	assert.Equal(t, "Flat 4B", a.HouseDetails)
	assert.Equal(t, "Flat 4B, MG Road", a.Label())
}

func TestBuildRejectsUnknownType(t *testing.T) {
	f := validFields()
	f.AddressType = "boat"
	_, err := f.Build(primitive.NewObjectID(), time.Now())
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestPatchApplyLeavesOriginalUntouchedOnFailure(t *testing.T) {
	a, err := validFields().Build(primitive.NewObjectID(), time.Now())
	require.NoError(t, err)
	before := *a

	patch := AddressPatch{
		Street:      ptr("New Street"),
		AddressText: ptr("   "),
	}
	merged, err := patch.Apply(*a, time.Now())
	assert.Nil(t, merged)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, before, *a)
}

func TestPatchApplyMerges(t *testing.T) {
	a, err := validFields().Build(primitive.NewObjectID(), time.Now())
	require.NoError(t, err)

	later := a.UpdatedAt.Add(time.Minute)
	merged, err := AddressPatch{
		AddressType: ptr(AddressTypeOffice),
		Favorite:    ptr(true),
	}.Apply(*a, later)
	require.NoError(t, err)
	assert.Equal(t, AddressTypeOffice, merged.AddressType)
	assert.True(t, merged.Favorite)
	assert.Equal(t, a.AddressText, merged.AddressText)
	assert.Equal(t, later, merged.UpdatedAt)
	assert.True(t, AddressPatch{}.Empty())
}
