package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mindbridge/internal/model"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, role model.Role) ([]model.User, error)
	ListActiveByRole(ctx context.Context, role model.Role) ([]model.User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns users ordered by creation; an empty role means every role.
func (r *userRepository) List(ctx context.Context, role model.Role) ([]model.User, error) {
	q := r.db.WithContext(ctx).Order("created_at ASC")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []model.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) ListActiveByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("username ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetActive flips the active flag; gorm.ErrRecordNotFound when the user does not exist.
func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCascade removes the messages of every conversation the user owns or
// is assigned to, those conversations, and the user, in one transaction.
func (r *userRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		related := tx.Model(&model.Conversation{}).
			Select("id").
			Where("user_id = ? OR assigned_to = ?", id, id)

		if err := tx.Where("conversation_id IN (?)", related).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? OR assigned_to = ?", id, id).Delete(&model.Conversation{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
