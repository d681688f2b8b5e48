package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a staff member who owns catalog, menu and distribution rows
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	IsStaff      bool           `gorm:"default:false" json:"is_staff"`
	Active       bool           `gorm:"default:true" json:"active"`

	// Relationships
	APIKeys []APIKey `gorm:"foreignKey:OwnerID" json:"api_keys,omitempty"`
}
