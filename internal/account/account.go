// Package account registers users and opens and closes their sessions.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"addressbook/internal/logger"
	"addressbook/internal/models"
	"addressbook/internal/security"
	"addressbook/internal/session"
	"addressbook/internal/store"
)

type SignupInput struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	PasswordConfirm string
}

// Result is a user together with the token just issued for them.
type Result struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	users    store.UserStore
	sessions *session.Store
	hasher   *security.Hasher
	log      *zap.Logger
}

func NewService(users store.UserStore, sessions *session.Store, hasher *security.Hasher, lg *zap.Logger) *Service {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{users: users, sessions: sessions, hasher: hasher, log: lg.Named("auth")}
}

// Signup creates the user and issues their first token. Nothing is persisted
// when the passwords differ.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	lg := logger.WithContext(ctx, s.log)
	if in.Password != in.PasswordConfirm {
		return nil, models.ErrPasswordMismatch
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			lg.Info("signup rejected, email taken", zap.String("email", logger.MaskEmail(in.Email)))
		}
		return nil, err
	}

	res, err := s.open(ctx, user)
	if err != nil {
		return nil, err
	}
	lg.Info("user registered", zap.String("user_id", user.ID.Hex()), zap.String("email", logger.MaskEmail(user.Email)))
	return res, nil
}

// Login verifies the credentials and replaces any existing session.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	lg := logger.WithContext(ctx, s.log)

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			lg.Info("login failed, unknown email", zap.String("email", logger.MaskEmail(email)))
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		lg.Info("login failed, wrong password", zap.String("user_id", user.ID.Hex()))
		return nil, models.ErrInvalidCredentials
	}

	res, err := s.open(ctx, user)
	if err != nil {
		return nil, err
	}
	lg.Info("user logged in", zap.String("user_id", user.ID.Hex()))
	return res, nil
}

// Logout revokes token. Later use of it fails as superseded.
func (s *Service) Logout(ctx context.Context, userID primitive.ObjectID, token string) error {
	if err := s.sessions.Revoke(ctx, userID, token); err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("user logged out", zap.String("user_id", userID.Hex()))
	return nil
}

func (s *Service) open(ctx context.Context, user *models.User) (*Result, error) {
	token, expiresAt, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Token = token
	user.TokenExpiresAt = &expiresAt
	return &Result{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
