package models

import "time"

// Meal is a single dish that may carry tags
type Meal struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Owner User  `gorm:"foreignKey:OwnerID" json:"-"`
	Tags  []Tag `gorm:"many2many:meal_tags;" json:"tags,omitempty"`
}

func (m *Meal) GetOwnerID() uint   { return m.OwnerID }
func (m *Meal) SetOwnerID(id uint) { m.OwnerID = id }
