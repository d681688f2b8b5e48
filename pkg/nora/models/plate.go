package models

import "time"

// Plate groups meals into one selectable option of a menu
type Plate struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Owner User   `gorm:"foreignKey:OwnerID" json:"-"`
	Meals []Meal `gorm:"many2many:plate_meals;" json:"meals,omitempty"`
}

func (p *Plate) GetOwnerID() uint   { return p.OwnerID }
func (p *Plate) SetOwnerID(id uint) { p.OwnerID = id }
