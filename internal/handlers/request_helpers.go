package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/middleware"
	"addressbook/internal/models"
)

// handlePanic turns a panic inside a handler into a 500. The panic value is
// attached to the context so the access log records it.
func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		_ = c.Error(fmt.Errorf("[%s] panic recovered: %v", route, r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, failure("internal", "internal server error"))
	}
}

func success(data gin.H) gin.H {
	return gin.H{"status": "success", "data": data}
}

func failure(code, message string) gin.H {
	return gin.H{"status": "fail", "code": code, "error": message}
}

// respondError maps a service error onto a status code and failure body.
// Unclassified errors are attached to the context and answered with 500.
func respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		body := failure("validation_failed", "validation failed")
		body["details"] = []fieldError{{Field: verr.Field, Message: verr.Message}}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
	case errors.Is(err, models.ErrPasswordMismatch):
		body := failure("password_mismatch", "passwords do not match")
		body["details"] = []fieldError{{Field: "passwordConfirm", Message: "must match password"}}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
	case errors.Is(err, models.ErrValidationFailed):
		c.AbortWithStatusJSON(http.StatusBadRequest, failure("validation_failed", "validation failed"))
	case errors.Is(err, models.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, failure("email_taken", "email already registered"))
	case errors.Is(err, models.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, failure("invalid_credentials", "invalid email or password"))
	case errors.Is(err, models.ErrExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, failure("expired", "session expired, please log in again"))
	case errors.Is(err, models.ErrSuperseded):
		c.AbortWithStatusJSON(http.StatusUnauthorized, failure("superseded", "session ended by a newer login, please log in again"))
	case errors.Is(err, models.ErrUnauthenticated):
		c.AbortWithStatusJSON(http.StatusUnauthorized, failure("unauthenticated", "not logged in"))
	case errors.Is(err, models.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, failure("forbidden", "you do not have access to this address"))
	case errors.Is(err, models.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, failure("not_found", "address not found"))
	case errors.Is(err, models.ErrUnresolvable):
		c.AbortWithStatusJSON(http.StatusNotFound, failure("unresolvable", "location could not be resolved"))
	case errors.Is(err, models.ErrProviderUnavailable):
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, failure("provider_unavailable", "location service unavailable, please retry"))
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, failure("internal", "internal server error"))
	}
}

// respondValidationError answers a failed bind with one detail per field.
func respondValidationError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{Field: fe.Field(), Message: describe(fe)})
		}
		body := failure("validation_failed", "validation failed")
		body["details"] = details
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		body := failure("validation_failed", "validation failed")
		body["details"] = []fieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, failure("validation_failed", "invalid body"))
}

func ownerID(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := middleware.OwnerID(c)
	if !ok {
		respondError(c, models.ErrUnauthenticated)
	}
	return id, ok
}

func pathID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, models.ErrNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}
