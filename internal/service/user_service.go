package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mindbridge/internal/auth"
	"mindbridge/internal/cache"
	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService exposes account directory and lifecycle operations.
type UserService interface {
	CreateUser(ctx context.Context, username, password string, role model.Role) (user *model.User, recoveryKey string, err error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
	ListCounselors(ctx context.Context) ([]model.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	DeleteSelf(ctx context.Context, claims *auth.Claims) error
}

type userService struct {
	repo       repository.UserRepository
	cache      *cache.Client
	tokenStore auth.TokenStoreInterface
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, tokenStore auth.TokenStoreInterface) UserService {
	return &userService{repo: repo, cache: cache, tokenStore: tokenStore}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return "user:" + id.String()
}

// CreateUser lets an admin open an account of any role.
func (s *userService) CreateUser(ctx context.Context, username, password string, role model.Role) (*model.User, string, error) {
	if !role.Valid() {
		return nil, "", fmt.Errorf("%w: unknown role %q", apperrors.ErrInvalidInput, role)
	}
	return createAccount(ctx, s.repo, username, password, role)
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	return s.repo.List(ctx, role)
}

func (s *userService) ListCounselors(ctx context.Context) ([]model.User, error) {
	return s.repo.ListActiveByRole(ctx, model.RoleCounselor)
}

func (s *userService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.User, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("set active: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return s.GetUser(ctx, id)
}

// DeleteUser removes the user together with every conversation they own or
// are assigned to and all messages in those conversations.
func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return nil
}

// DeleteSelf deletes the caller's account and revokes the token used to do it.
func (s *userService) DeleteSelf(ctx context.Context, claims *auth.Claims) error {
	if err := s.DeleteUser(ctx, claims.UserID); err != nil {
		return err
	}
	return revokeAccessToken(ctx, s.tokenStore, claims)
}
