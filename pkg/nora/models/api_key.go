package models

import (
	"time"

	"gorm.io/gorm"
)

// APIKey represents an API key for programmatic access
type APIKey struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	KeyHash     string         `gorm:"not null;uniqueIndex" json:"-"`
	KeyPrefix   string         `gorm:"not null" json:"key_prefix"` // First few chars for identification
	Description string         `json:"description"`
	LastUsedAt  *time.Time     `json:"last_used_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (k *APIKey) GetOwnerID() uint   { return k.OwnerID }
func (k *APIKey) SetOwnerID(id uint) { k.OwnerID = id }
