package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"filevault/internal/auth"
	"filevault/internal/cache"
	apperrors "filevault/internal/errors"
	"filevault/internal/model"
	"filevault/internal/repository"
	"filevault/internal/storage"
	"filevault/internal/validation"
)

// Profile is the public view of an account. FilesUploaded lists the caller's files in upload order.
type Profile struct {
	Username      string               `json:"username"`
	Email         string               `json:"email"`
	Verified      bool                 `json:"verified"`
	LastLogin     *time.Time           `json:"lastLogin,omitempty"`
	FilesUploaded []model.FileMetadata `json:"filesUploaded"`
}

// ProfileUpdate carries the fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	Username *string
	Email    *string
	Password *string
}

// ProfileService reads and edits the caller's own account.
type ProfileService interface {
	Get(ctx context.Context, user *model.User) (*Profile, error)
	Update(ctx context.Context, user *model.User, upd ProfileUpdate) error
}

type profileService struct {
	users     repository.UserRepository
	files     repository.FileRepository
	objects   storage.ObjectStore
	hasher    auth.PasswordHasher
	cache     *cache.Client
	validator *validation.Validator
	log       logrus.FieldLogger
}

// NewProfileService creates a profile service.
func NewProfileService(
	users repository.UserRepository,
	files repository.FileRepository,
	objects storage.ObjectStore,
	hasher auth.PasswordHasher,
	cacheClient *cache.Client,
	v *validation.Validator,
	log logrus.FieldLogger,
) ProfileService {
	return &profileService{users: users, files: files, objects: objects, hasher: hasher, cache: cacheClient, validator: v, log: log}
}

func (s *profileService) Get(ctx context.Context, user *model.User) (*Profile, error) {
	fresh, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	files, err := s.files.ListByUser(ctx, fresh.ID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	if files == nil {
		files = []model.FileMetadata{}
	}
	return &Profile{
		Username:      fresh.Username,
		Email:         fresh.Email,
		Verified:      fresh.Verified,
		LastLogin:     fresh.LastLogin,
		FilesUploaded: files,
	}, nil
}

// Update validates and applies the provided fields. A username change that alters the owner
// prefix moves every object to the new prefix before the record changes.
func (s *profileService) Update(ctx context.Context, user *model.User, upd ProfileUpdate) error {
	if upd.Username == nil && upd.Email == nil && upd.Password == nil {
		return apperrors.ErrNothingToUpdate
	}

	fields := make(map[string]interface{})
	var fieldErrs []apperrors.FieldError
	check := func(name, value, rules string) bool {
		err := s.validator.Field(name, value, rules)
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			fieldErrs = append(fieldErrs, verr.Fields...)
			return false
		}
		return err == nil
	}

	if upd.Username != nil && check("username", *upd.Username, validation.UsernameRules) {
		fields["username"] = *upd.Username
	}
	if upd.Email != nil && check("email", *upd.Email, validation.EmailRules) {
		fields["email"] = *upd.Email
	}
	if upd.Password != nil && check("password", *upd.Password, validation.PasswordRules) {
		digest, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return err
		}
		fields["password_hash"] = digest
	}
	if len(fieldErrs) > 0 {
		return &apperrors.ValidationError{Fields: fieldErrs}
	}

	if upd.Username != nil {
		if err := s.ensureFree(ctx, user.ID, s.users.FindByUsername, *upd.Username); err != nil {
			return err
		}
	}
	if upd.Email != nil {
		if err := s.ensureFree(ctx, user.ID, s.users.FindByEmail, *upd.Email); err != nil {
			return err
		}
	}

	oldPrefix := user.OwnerPrefix()
	newPrefix := oldPrefix
	if upd.Username != nil {
		newPrefix = strings.ToLower(*upd.Username) + "/"
	}
	if newPrefix != oldPrefix {
		if err := storage.MovePrefix(ctx, s.objects, oldPrefix, newPrefix); err != nil {
			return fmt.Errorf("move files: %w", err)
		}
	}

	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		if newPrefix != oldPrefix {
			if mvErr := storage.MovePrefix(ctx, s.objects, newPrefix, oldPrefix); mvErr != nil {
				s.log.WithError(mvErr).WithField("user_id", user.ID).Error("files left under new prefix")
			}
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateIdentity
		}
		return fmt.Errorf("update profile: %w", err)
	}

	if newPrefix != oldPrefix {
		_ = s.cache.Delete(ctx, ListCacheKey(user.ID))
	}
	s.log.WithField("user_id", user.ID).Info("profile updated")
	return nil
}

func (s *profileService) ensureFree(
	ctx context.Context,
	selfID uint,
	find func(context.Context, string) (*model.User, error),
	value string,
) error {
	other, err := find(ctx, value)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check identity: %w", err)
	}
	if other.ID != selfID {
		return apperrors.ErrDuplicateIdentity
	}
	return nil
}
