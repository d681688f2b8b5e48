package models

import "time"

// Tag labels meals, e.g. "vegano" or "sin gluten"
type Tag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (t *Tag) GetOwnerID() uint   { return t.OwnerID }
func (t *Tag) SetOwnerID(id uint) { t.OwnerID = id }
