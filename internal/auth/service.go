package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/validate"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=24,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the body of POST /api/auth/login. Login is a username or email.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is a successful register or login result.
type Session struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// Service implements registration, login and token checks.
type Service struct {
	users     *Users
	passwords Passwords
	tokens    *Tokens
}

// NewService wires the account store, hasher and token issuer.
func NewService(users *Users, passwords Passwords, tokens *Tokens) *Service {
	return &Service{users: users, passwords: passwords, tokens: tokens}
}

// Register creates an account and returns a token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	if fields := validate.Struct(req); fields != nil {
		return Session{}, apperr.Validation(fields)
	}
	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.users.Create(ctx, req.Username, req.Email, hash)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return Session{}, apperr.Conflict(err.Error())
		}
		return Session{}, err
	}
	return s.issue(user)
}

// Login checks credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	if fields := validate.Struct(req); fields != nil {
		return Session{}, apperr.Validation(fields)
	}
	user, err := s.users.ByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, apperr.Unauthorized(ErrInvalidCredentials.Error())
		}
		return Session{}, err
	}
	if err := s.passwords.Check(user.PasswordHash, req.Password); err != nil {
		return Session{}, apperr.Unauthorized(err.Error())
	}
	return s.issue(user)
}

// Authenticate resolves a bearer token to an Identity.
func (s *Service) Authenticate(token string) (Identity, error) {
	if token == "" {
		return Anonymous, apperr.Unauthorized("token required")
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return Anonymous, apperr.Unauthorized(err.Error())
	}
	return claims.Identity(), nil
}

func (s *Service) issue(user User) (Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return Session{
		Token: token,
		User: Identity{
			IsAuthenticated: true,
			UserID:          user.ID,
			Username:        DisplayName(user.Username, user.Email),
		},
	}, nil
}
