package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"filevault/internal/model"
)

// FileRepository manages the per-user file metadata list.
type FileRepository interface {
	Append(ctx context.Context, meta *model.FileMetadata) error
	Touch(ctx context.Context, userID uint, fileName string, at time.Time) (bool, error)
	Remove(ctx context.Context, userID uint, fileName string) error
	ListByUser(ctx context.Context, userID uint) ([]model.FileMetadata, error)
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository builds a GORM-backed file metadata repository.
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// Append stores a new entry. A second entry with the same name for the same user fails
// with gorm.ErrDuplicatedKey when the DB was opened with TranslateError.
func (r *fileRepository) Append(ctx context.Context, meta *model.FileMetadata) error {
	return r.db.WithContext(ctx).Create(meta).Error
}

// Touch bumps updated_at and reports whether an entry matched.
func (r *fileRepository) Touch(ctx context.Context, userID uint, fileName string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.FileMetadata{}).
		Where("user_id = ? AND file_name = ?", userID, fileName).
		Update("updated_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *fileRepository) Remove(ctx context.Context, userID uint, fileName string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND file_name = ?", userID, fileName).
		Delete(&model.FileMetadata{}).Error
}

func (r *fileRepository) ListByUser(ctx context.Context, userID uint) ([]model.FileMetadata, error) {
	var files []model.FileMetadata
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}
