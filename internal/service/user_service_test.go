package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mindbridge/internal/auth"
	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
)

func TestUserService_CreateUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByUsername", mock.Anything, "counselor1").Return(nil, gorm.ErrRecordNotFound)
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Role == model.RoleCounselor
	})).Return(nil)

	svc := NewUserService(mockRepo, nil, new(MockTokenStore))
	user, key, err := svc.CreateUser(context.Background(), "counselor1", "password123", model.RoleCounselor)
	require.NoError(t, err)
	assert.Equal(t, model.RoleCounselor, user.Role)
	assert.NotEmpty(t, key)

	_, _, err = svc.CreateUser(context.Background(), "x", "password123", model.Role("ROOT"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 400, apperrors.MapErrorToHTTP(err).StatusCode)
	mockRepo.AssertExpectations(t)
}

func TestUserService_SetActive(t *testing.T) {
	id := uuid.New()
	missing := uuid.New()
	mockRepo := new(MockUserRepository)
	mockRepo.On("SetActive", mock.Anything, id, false).Return(nil)
	mockRepo.On("FindByID", mock.Anything, id).Return(&model.User{ID: id, Role: model.RoleCounselor}, nil)
	mockRepo.On("SetActive", mock.Anything, missing, false).Return(gorm.ErrRecordNotFound)

	svc := NewUserService(mockRepo, nil, new(MockTokenStore))
	user, err := svc.SetActive(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	_, err = svc.SetActive(context.Background(), missing, false)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserService_DeleteUser(t *testing.T) {
	missing := uuid.New()
	mockRepo := new(MockUserRepository)
	mockRepo.On("DeleteCascade", mock.Anything, missing).Return(gorm.ErrRecordNotFound)

	svc := NewUserService(mockRepo, nil, new(MockTokenStore))
	assert.ErrorIs(t, svc.DeleteUser(context.Background(), missing), apperrors.ErrUserNotFound)
}

func TestUserService_DeleteSelfRevokesToken(t *testing.T) {
	id := uuid.New()
	claims := &auth.Claims{
		UserID:    id,
		Role:      model.RoleStudent,
		TokenType: auth.AccessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "token-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		},
	}

	mockRepo := new(MockUserRepository)
	mockTokenStore := new(MockTokenStore)
	mockRepo.On("DeleteCascade", mock.Anything, id).Return(nil)
	mockTokenStore.On("BlacklistAccessToken", mock.Anything, "token-1", mock.AnythingOfType("time.Duration")).Return(nil)

	svc := NewUserService(mockRepo, nil, mockTokenStore)
	require.NoError(t, svc.DeleteSelf(context.Background(), claims))

	mockRepo.AssertExpectations(t)
	mockTokenStore.AssertExpectations(t)
}
