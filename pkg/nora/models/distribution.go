package models

import (
	"time"

	"gorm.io/datatypes"
)

// Distribution configures the chat channel a delivery link is sent to and
// the daily window in which commensals may book.
type Distribution struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	LinkID    string    `gorm:"size:200;not null" json:"link_id"` // webhook path, https://hooks.slack.com/services/<LinkID>
	IsActive  bool      `json:"is_active"`

	// Time of day the selection link is sent
	DistributionHourLink datatypes.Time `gorm:"not null" json:"distribution_hour_link"`
	// Time of day after which the booking closes
	EndAvailableDistributionLink datatypes.Time `gorm:"not null" json:"end_available_distribution_link"`

	OwnerID uint `gorm:"not null;index" json:"owner_id"`
	Owner   User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (d *Distribution) GetOwnerID() uint   { return d.OwnerID }
func (d *Distribution) SetOwnerID(id uint) { d.OwnerID = id }
