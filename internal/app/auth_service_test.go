package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerai-backend/internal/model"
	"peerai-backend/internal/pkg/jwtutil"
	"peerai-backend/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	return NewAuthService(
		repository.NewUserRepository(db),
		repository.NewTeamRepository(db),
		"test-secret",
		time.Hour,
	)
}

func TestRegisterFounderBecomesAdmin(t *testing.T) {
	svc := newAuthService(t)

	result, err := svc.Register(RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, result.User.Role)
	assert.NotZero(t, result.User.TeamID)

	claims, err := jwtutil.ParseToken("test-secret", result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.UserID)
	assert.Equal(t, result.User.TeamID, claims.TeamID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestRegisterLaterMemberIsViewer(t *testing.T) {
	svc := newAuthService(t)

	founder, err := svc.Register(RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	require.NoError(t, err)

	member, err := svc.Register(RegisterInput{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, member.User.Role)
	assert.Equal(t, founder.User.TeamID, member.User.TeamID)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	require.NoError(t, err)

	_, err = svc.Register(RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = svc.Register(RegisterInput{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(RegisterInput{Username: "alice", Email: "a@b.c", Password: "short", TeamName: "acme"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(RegisterInput{Username: "alice", Email: "a@b.c", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidInput, "team name is required")
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		TeamName: "acme",
	})
	require.NoError(t, err)

	result, err := svc.Login(LoginInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = svc.Login(LoginInput{Username: "alice", Password: "wrongpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.Login(LoginInput{Username: "nobody", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
