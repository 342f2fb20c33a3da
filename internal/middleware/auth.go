package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"addressbook/internal/models"
)

const (
	userIDKey = "userId"
	userKey   = "user"
	tokenKey  = "token"
)

var errMalformedHeader = errors.New("invalid authorization header")

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, error) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return "", models.ErrUnauthenticated
	}

	parts := strings.Fields(raw)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedHeader
	}
	return parts[1], nil
}

// OwnerID returns the validated user id set by UserAuth.
func OwnerID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

// CurrentUser returns the user loaded during validation.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// SessionToken returns the bearer token that passed validation.
func SessionToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
