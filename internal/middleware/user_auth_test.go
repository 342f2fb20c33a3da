package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"addressbook/internal/models"
	"addressbook/internal/session"
	"addressbook/internal/store"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *session.Store, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users, _ := store.NewMemory()
	u, err := users.Create(context.Background(), &models.User{Name: "Asha", Email: "asha@example.com"})
	require.NoError(t, err)
	sessions := session.New(users, "secret", time.Hour, nil)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", UserAuth(sessions, nil), func(c *gin.Context) {
		id, ok := OwnerID(c)
		require.True(t, ok)
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id.Hex(), "email": user.Email, "token": SessionToken(c)})
	})
	return r, sessions, u
}

func call(r *gin.Engine, header string) (*httptest.ResponseRecorder, map[string]string) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	body := map[string]string{}
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}

func TestUserAuthAcceptsCurrentToken(t *testing.T) {
	r, sessions, u := newAuthRouter(t)
	token, _, err := sessions.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	rr, body := call(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, u.ID.Hex(), body["id"])
	assert.Equal(t, token, body["token"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUserAuthRejections(t *testing.T) {
	r, sessions, u := newAuthRouter(t)
	old, _, err := sessions.Issue(context.Background(), u.ID)
	require.NoError(t, err)
	_, _, err = sessions.Issue(context.Background(), u.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "unauthenticated"},
		{"wrong scheme", "Basic abc", "unauthenticated"},
		{"garbage token", "Bearer nope", "unauthenticated"},
		{"superseded token", "Bearer " + old, "superseded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := call(r, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "fail", body["status"])
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRejectMessagesAreDistinct(t *testing.T) {
	gin.SetMode(gin.TestMode)
	messages := map[string]bool{}
	for _, err := range []error{models.ErrUnauthenticated, models.ErrExpired, models.ErrSuperseded} {
		rr := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rr)
		reject(c, err)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		messages[body["error"]] = true
	}
	assert.Len(t, messages, 3)
}
