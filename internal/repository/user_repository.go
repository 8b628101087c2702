package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"filevault/internal/model"
)

// UserRepository defines credential store operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Omit("Files").Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername matches case-insensitively, since the owner prefix is lower-cased.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ?", strings.ToLower(username)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsernameOrEmail returns the first user holding either identity, compared
// case-insensitively. Both arguments are matched as given; callers validate them first.
func (r *userRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = ? OR LOWER(email) = ?", strings.ToLower(username), strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes the user and its file metadata in one transaction.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.FileMetadata{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}

// ListInactiveSince returns users whose last login, or registration when they never logged in,
// is before cutoff.
func (r *userRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("COALESCE(last_login, created_at) < ?", cutoff).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
