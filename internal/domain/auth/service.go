package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"epitrack/internal/core/apperror"
	"epitrack/pkg/logger"
)

const (
	maxLoginAttempts = 5
	lockDuration     = 15 * time.Minute
)

// Service handles authentication.
type Service struct {
	users UserRepository
	jwt   *JWTService
	log   *logger.Logger
}

// NewService creates an auth service.
func NewService(users UserRepository, jwt *JWTService, log *logger.Logger) *Service {
	return &Service{users: users, jwt: jwt, log: log}
}

// Login authenticates credentials and returns an access token.
// Failed attempts are counted and lock the account after the limit.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenResult, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || creds.Password == "" {
		return nil, apperror.NewValidation("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := u.CanLogin(); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		u.RecordFailedLogin(maxLoginAttempts, lockDuration)
		if updateErr := s.users.Update(ctx, u); updateErr != nil {
			logger.Error(ctx, "failed to record login attempt", "error", updateErr)
		}
		return nil, apperror.NewUnauthorized("invalid credentials")
	}

	u.RecordSuccessfulLogin()
	if err := s.users.Update(ctx, u); err != nil {
		logger.Error(ctx, "failed to record login", "error", err)
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(u)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	logger.Info(ctx, "user logged in", "user_id", u.ID.String())
	return &TokenResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
		User:        u,
	}, nil
}

// Register creates a user with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, password, name string, roles []string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < 8 {
		return nil, apperror.NewValidation("password must be at least 8 characters").WithDetail("field", "password")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewDuplicate("user", "email", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	u := NewUser(email, string(hash), name)
	u.Roles = roles
	if err := u.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.Info(ctx, "user registered", "user_id", u.ID.String())
	return u, nil
}
