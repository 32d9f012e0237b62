package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epitrack/internal/core/apperror"
	"epitrack/internal/core/id"
	"epitrack/pkg/logger"
)

type memUserRepo struct {
	byID map[id.ID]*User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[id.ID]*User)}
}

func (r *memUserRepo) Create(ctx context.Context, u *User) error {
	r.byID[u.ID] = u
	return nil
}

func (r *memUserRepo) Update(ctx context.Context, u *User) error {
	r.byID[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	u, ok := r.byID[userID]
	if !ok {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func newAuthService() (*Service, *memUserRepo) {
	users := newMemUserRepo()
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	return NewService(users, jwtSvc, logger.Default()), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Maria@Example.COM", "s3cret-pass", "Maria", []string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", u.Email, "email is normalized")
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	result, err := svc.Login(ctx, Credentials{Email: "maria@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.True(t, result.ExpiresAt.After(time.Now()))
	require.NotNil(t, result.User.LastLoginAt)
}

func TestRegister_Rejections(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.com", "short", "A", nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation), "password too short")

	_, err = svc.Register(ctx, "a@b.com", "long-enough-pass", "A", nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "A@B.com", "long-enough-pass", "A", nil)
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicate), "email already taken")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.com", "long-enough-pass", "A", nil)
	require.NoError(t, err)

	_, err = svc.Login(ctx, Credentials{Email: "a@b.com", Password: "wrong"})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))

	// Unknown emails get the same answer as wrong passwords.
	_, err = svc.Login(ctx, Credentials{Email: "nobody@b.com", Password: "wrong"})
	assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))

	_, err = svc.Login(ctx, Credentials{Email: "", Password: ""})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@b.com", "long-enough-pass", "A", nil)
	require.NoError(t, err)

	for i := 0; i < maxLoginAttempts; i++ {
		_, err = svc.Login(ctx, Credentials{Email: "a@b.com", Password: "wrong"})
		assert.True(t, apperror.IsCode(err, apperror.CodeUnauthorized))
	}

	stored, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsLocked())

	// Even the right password is refused while locked.
	_, err = svc.Login(ctx, Credentials{Email: "a@b.com", Password: "long-enough-pass"})
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@b.com", "long-enough-pass", "A", nil)
	require.NoError(t, err)
	u.IsActive = false
	require.NoError(t, users.Update(ctx, u))

	_, err = svc.Login(ctx, Credentials{Email: "a@b.com", Password: "long-enough-pass"})
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
}
