package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"addressbook/internal/logger"
	"addressbook/internal/models"
	"addressbook/internal/session"
)

// SessionValidator is satisfied by *session.Store.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*session.Identity, error)
}

// UserAuth validates the bearer token against the stored session and injects
// the owner into the context. The owner is never taken from the request body.
func UserAuth(sessions SessionValidator, lg *zap.Logger) gin.HandlerFunc {
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("auth")

	return func(c *gin.Context) {
		log := logger.WithContext(c.Request.Context(), lg)

		token, err := bearerToken(c)
		if err != nil {
			log.Info("rejecting request", zap.String("path", c.FullPath()), zap.Error(err))
			reject(c, err)
			return
		}

		id, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			log.Info("token validation failed", zap.String("path", c.FullPath()), zap.Error(err))
			reject(c, err)
			return
		}

		c.Set(userIDKey, id.UserID)
		c.Set(userKey, id.User)
		c.Set(tokenKey, id.Token)
		c.Next()
	}
}

// reject answers 401 with a message that tells the three session failures
// apart. Store errors are 500.
func reject(c *gin.Context, err error) {
	status, code, message := http.StatusUnauthorized, "unauthenticated", "not logged in"
	switch {
	case errors.Is(err, errMalformedHeader):
		message = "invalid token"
	case errors.Is(err, models.ErrExpired):
		code, message = "expired", "session expired, please log in again"
	case errors.Is(err, models.ErrSuperseded):
		code, message = "superseded", "session ended by a newer login, please log in again"
	case errors.Is(err, models.ErrUnauthenticated):
	default:
		status, code, message = http.StatusInternalServerError, "internal", "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": "fail", "code": code, "error": message})
}
