package models

import "time"

// Menu is a named set of plates offered on the date of its delivery
type Menu struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Owner      User       `gorm:"foreignKey:OwnerID" json:"-"`
	Plates     []Plate    `gorm:"many2many:menu_plates;" json:"plates,omitempty"`
	Deliveries []Delivery `gorm:"foreignKey:MenuID" json:"-"`
}

func (m *Menu) GetOwnerID() uint   { return m.OwnerID }
func (m *Menu) SetOwnerID(id uint) { m.OwnerID = id }
