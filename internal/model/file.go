package model

import (
	"path/filepath"
	"strings"
	"time"
)

// FileMetadata describes one object owned by a user.
type FileMetadata struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"not null;uniqueIndex:idx_user_file"`
	FileName  string    `json:"fileName" gorm:"size:255;not null;uniqueIndex:idx_user_file"`
	FileType  string    `json:"fileType" gorm:"size:50"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName keeps the table name short.
func (FileMetadata) TableName() string {
	return "files"
}

// FileTypeOf returns the extension of name without the leading dot.
func FileTypeOf(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
