package model

import (
	"strings"
	"time"
)

// User represents a registered account owning a file namespace.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Username     string         `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email        string         `json:"email" gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Verified     bool           `json:"verified" gorm:"default:false;not null"`
	LastLogin    *time.Time     `json:"last_login,omitempty" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Files        []FileMetadata `json:"files,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// OwnerPrefix returns the storage prefix every object of the user lives under.
func (u *User) OwnerPrefix() string {
	return strings.ToLower(u.Username) + "/"
}

// LastActivity is the last login, or the registration time for users that never logged in.
func (u *User) LastActivity() time.Time {
	if u.LastLogin != nil {
		return *u.LastLogin
	}
	return u.CreatedAt
}
