package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/workbridge/marketplace-backend/internal/models"
	"github.com/workbridge/marketplace-backend/internal/pkg/apperror"
	"github.com/workbridge/marketplace-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newAuthService() (*AuthService, *mockAuthRepo) {
	repo := new(mockAuthRepo)
	tokens := NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 720*time.Hour)
	return NewAuthService(repo, tokens), repo
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "ivan@example.com" && u.Role == models.RoleClient && u.IsActive
	})).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "  Ivan@Example.com ",
		Password: "secret-password",
		Role:     models.RoleClient,
	})
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", result.User.Email)
	assert.Equal(t, "ivan", result.User.Username)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	// Пароль хранится только в виде bcrypt хеша.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte("secret-password")))
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "secret-password"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "short"})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "secret-password", Role: models.RoleAdmin})
	assert.True(t, apperror.IsValidation(err))
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateUser)

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.com", Password: "secret-password"})
	assert.True(t, apperror.IsConflict(err))
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "a@b.com",
		PasswordHash: string(hash),
		Role:         models.RoleFreelancer,
		IsActive:     true,
	}

	repo.On("GetByEmail", ctx, "a@b.com").Return(user, nil)
	repo.On("UpdateLastLogin", ctx, user.ID).Return(nil)

	result, err := svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret-password"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret-password"), bcrypt.MinCost)

	repo.On("GetByEmail", ctx, "a@b.com").Return(&models.User{
		ID:           uuid.New(),
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ghost@b.com").Return(nil, repository.ErrUserNotFound)

	_, err := svc.Login(ctx, LoginInput{Email: "ghost@b.com", Password: "secret-password"})
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "a@b.com").Return(&models.User{
		ID:       uuid.New(),
		IsActive: false,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret-password"})
	assert.True(t, apperror.IsForbidden(err))
}

func TestAuthService_Refresh_Success(t *testing.T) {
	svc, repo := newAuthService()
	ctx := context.Background()
	user := &models.User{
		ID:       uuid.New(),
		Role:     models.RoleClient,
		IsActive: true,
	}

	pair, err := svc.tokenManager.GeneratePair(user)
	require.NoError(t, err)

	repo.On("GetByID", ctx, user.ID).Return(user, nil)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEmpty(t, refreshed.RefreshToken)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	svc, _ := newAuthService()

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeUnauthorized, apperror.Code(err))
}

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	tokens := NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	pair, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	userID, role, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleAdmin, role)

	// Access токен не валиден как refresh: разные секреты.
	_, err = tokens.ParseRefresh(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenManager_ExpiredAccess(t *testing.T) {
	tokens := NewTokenManager("access-secret-for-tests", "refresh-secret-for-tests", -time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, err := tokens.GeneratePair(user)
	require.NoError(t, err)

	_, _, err = tokens.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}
