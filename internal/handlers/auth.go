package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"addressbook/internal/account"
	"addressbook/internal/middleware"
	"addressbook/internal/models"
)

type SignupRequest struct {
	Name            string `json:"name" binding:"required,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Phone           string `json:"phone" binding:"omitempty,max=20"`
	Password        string `json:"password" binding:"required,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func sessionResponse(res *account.Result) gin.H {
	return gin.H{
		"status":    "success",
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"data":      gin.H{"user": res.User.Public()},
	}
}

func Signup(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "SIGNUP")

		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		res, err := accounts.Signup(c.Request.Context(), account.SignupInput{
			Name:            req.Name,
			Email:           req.Email,
			Phone:           req.Phone,
			Password:        req.Password,
			PasswordConfirm: req.PasswordConfirm,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, sessionResponse(res))
	}
}

func Login(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "LOGIN")

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		res, err := accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, sessionResponse(res))
	}
}

// Logout revokes the token the request was authenticated with.
func Logout(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, "LOGOUT")

		owner, ok := ownerID(c)
		if !ok {
			return
		}
		if err := accounts.Logout(c.Request.Context(), owner, middleware.SessionToken(c)); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok || user == nil {
			respondError(c, models.ErrUnauthenticated)
			return
		}
		c.JSON(http.StatusOK, success(gin.H{"user": user.Public()}))
	}
}
