package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mindbridge/internal/auth"
	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/repository"
)

const bcryptCost = 10

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, username, password string) (user *model.User, recoveryKey string, err error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *model.User, err error)
	Recover(ctx context.Context, username, recoveryKey, newPassword string) (newRecoveryKey string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken, accessToken string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	RegenerateRecoveryKey(ctx context.Context, userID uuid.UUID) (string, error)
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

func hashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func secretMatches(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// newRecoveryKey returns a fresh plaintext key and its hash.
func newRecoveryKey() (key, hash string, err error) {
	key = uuid.NewString()
	hash, err = hashSecret(key)
	if err != nil {
		return "", "", fmt.Errorf("hash recovery key: %w", err)
	}
	return key, hash, nil
}

// createAccount hashes the password, issues a recovery key and stores the user.
func createAccount(ctx context.Context, repo repository.UserRepository, username, password string, role model.Role) (*model.User, string, error) {
	_, err := repo.FindByUsername(ctx, username)
	if err == nil {
		return nil, "", apperrors.ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", fmt.Errorf("check username: %w", err)
	}

	passwordHash, err := hashSecret(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	key, keyHash, err := newRecoveryKey()
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		Username:        username,
		PasswordHash:    passwordHash,
		RecoveryKeyHash: &keyHash,
		Role:            role,
		IsActive:        true,
	}
	if err := repo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", apperrors.ErrUsernameTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	return user, key, nil
}

// Register creates a STUDENT account. The recovery key is only ever returned here.
func (s *authService) Register(ctx context.Context, username, password string) (*model.User, string, error) {
	return createAccount(ctx, s.userRepo, username, password, model.RoleStudent)
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *model.User, err error) {
	user, err = s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, apperrors.ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("find user: %w", err)
	}
	if !secretMatches(user.PasswordHash, password) {
		return "", "", nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", "", nil, apperrors.ErrAccountInactive
	}

	accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}
	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, s.jwtService.RefreshTTL()); err != nil {
		return "", "", nil, fmt.Errorf("store refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Recover resets the password of the account the recovery key belongs to
// and rotates the key.
func (s *authService) Recover(ctx context.Context, username, recoveryKey, newPassword string) (string, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrInvalidRecoveryKey
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if user.RecoveryKeyHash == nil || !secretMatches(*user.RecoveryKeyHash, recoveryKey) {
		return "", apperrors.ErrInvalidRecoveryKey
	}

	passwordHash, err := hashSecret(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	key, keyHash, err := newRecoveryKey()
	if err != nil {
		return "", err
	}

	user.PasswordHash = passwordHash
	user.RecoveryKeyHash = &keyHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("update user: %w", err)
	}
	return key, nil
}

// RefreshToken validates a refresh token and returns a new access token
// carrying the user's current role.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}

	storedUserID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedUserID != claims.UserID {
		return "", apperrors.ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return "", apperrors.ErrAccountInactive
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates a refresh token. When the caller also presents a valid
// access token it is blacklisted for the rest of its lifetime.
func (s *authService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidRefreshToken
	}
	if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	if accessToken == "" {
		return nil
	}
	access, err := s.jwtService.ValidateToken(accessToken)
	if err != nil || access.TokenType != auth.AccessTokenType {
		return nil
	}
	return revokeAccessToken(ctx, s.tokenStore, access)
}

func revokeAccessToken(ctx context.Context, tokens auth.TokenStoreInterface, claims *auth.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	if err := tokens.BlacklistAccessToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return fmt.Errorf("blacklist access token: %w", err)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !secretMatches(user.PasswordHash, currentPassword) {
		return apperrors.ErrInvalidPassword
	}

	passwordHash, err := hashSecret(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = passwordHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// RegenerateRecoveryKey replaces the recovery key; the old one stops working.
func (s *authService) RegenerateRecoveryKey(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return "", err
	}
	key, keyHash, err := newRecoveryKey()
	if err != nil {
		return "", err
	}
	user.RecoveryKeyHash = &keyHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("update user: %w", err)
	}
	return key, nil
}

func (s *authService) findUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
