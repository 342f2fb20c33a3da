package handlers

import (
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"addressbook/internal/models"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator and
// makes field errors report JSON names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("addresstype", validAddressType)
		_ = v.RegisterValidation("lnglat", validLngLat)
	})
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validAddressType(fl validator.FieldLevel) bool {
	return models.AddressType(fl.Field().String()).Valid()
}

// validLngLat checks a [longitude, latitude] slice.
func validLngLat(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice || field.Len() != 2 {
		return false
	}
	lng, lat := field.Index(0).Float(), field.Index(1).Float()
	if math.IsNaN(lng) || math.IsNaN(lat) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must not exceed " + fe.Param() + " characters"
	case "len":
		return "must contain exactly " + fe.Param() + " values"
	case "addresstype":
		return "must be one of home, office, friends, family"
	case "lnglat":
		return "must be [longitude, latitude] within range"
	default:
		return fe.Field() + " is invalid"
	}
}
