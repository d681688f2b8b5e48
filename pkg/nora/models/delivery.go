package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Delivery is one dated occurrence of a menu sent through a distribution.
// MenuDeliveryID is the public token of the selection link.
type Delivery struct {
	MenuDeliveryID string          `gorm:"primaryKey;type:varchar(36)" json:"menu_delivery_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Date           datatypes.Date  `gorm:"not null;index" json:"date"`
	HourSent       *datatypes.Time `json:"hour_sent"`
	WasSending     bool            `gorm:"not null;default:false" json:"was_sending"`
	MenuID         uint            `gorm:"not null;index" json:"menu_id"`
	DistributionID uint            `gorm:"not null;index" json:"distribution_id"`
	OwnerID        uint            `gorm:"not null;index" json:"owner_id"`

	// Relationships
	Menu         Menu                `gorm:"foreignKey:MenuID" json:"-"`
	Distribution Distribution        `gorm:"foreignKey:DistributionID" json:"-"`
	Owner        User                `gorm:"foreignKey:OwnerID" json:"-"`
	Selections   []DeliverySelection `gorm:"foreignKey:DeliveryID;references:MenuDeliveryID" json:"-"`
}

func (d *Delivery) GetOwnerID() uint   { return d.OwnerID }
func (d *Delivery) SetOwnerID(id uint) { d.OwnerID = id }

// BeforeCreate assigns a random UUID v4 token
func (d *Delivery) BeforeCreate(tx *gorm.DB) error {
	if d.MenuDeliveryID == "" {
		d.MenuDeliveryID = uuid.NewString()
	}
	return nil
}

// SelectionPath returns the public path commensals use to book plates
func (d *Delivery) SelectionPath() string {
	return SelectionPath(d.MenuDeliveryID)
}

// SelectionPath returns the public selection path for a delivery token
func SelectionPath(token string) string {
	return "/menu/" + token + "/"
}

// IsFinishedBooking reports whether the booking window is closed at now.
// The rule is: the time of day is past the distribution cutoff and today
// is not after the delivery date. Distribution must be loaded.
func (d *Delivery) IsFinishedBooking(now time.Time) bool {
	cutoff := time.Duration(d.Distribution.EndAvailableDistributionLink)
	return TimeOfDay(now) > cutoff && !CalendarDate(now).After(CalendarDate(time.Time(d.Date)))
}

// TimeOfDay returns the wall-clock offset of t since its midnight
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// CalendarDate drops the clock and zone of t, keeping its calendar day
func CalendarDate(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// NewDate builds a date column value for the given calendar day
func NewDate(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DeliverySelection is one commensal's anonymous choice of plates
type DeliverySelection struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"size:200" json:"description"`
	DeliveryID  string    `gorm:"type:varchar(36);not null;index" json:"delivery_id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"` // copied from the delivery

	// Relationships
	Delivery Delivery `gorm:"foreignKey:DeliveryID;references:MenuDeliveryID" json:"-"`
	Owner    User     `gorm:"foreignKey:OwnerID" json:"-"`
	Plates   []Plate  `gorm:"many2many:delivery_selection_plates;" json:"plates,omitempty"`
}

func (s *DeliverySelection) GetOwnerID() uint   { return s.OwnerID }
func (s *DeliverySelection) SetOwnerID(id uint) { s.OwnerID = id }
