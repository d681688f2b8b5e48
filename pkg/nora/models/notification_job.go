package models

import "time"

// JobStatus represents the lifecycle of a queued notification
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSent       JobStatus = "sent"
	JobStatusFailed     JobStatus = "failed"
)

// JobKindSendSelectionLink posts a delivery's selection link to its channel
const JobKindSendSelectionLink = "send_selection_link"

// NotificationJob is a durable, scheduled outbound message
type NotificationJob struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Kind          string     `gorm:"size:64;not null" json:"kind"`
	Channel       string     `gorm:"size:200;not null" json:"channel"`
	DeliveryToken string     `gorm:"type:varchar(36);not null;index" json:"delivery_token"`
	RunAt         time.Time  `gorm:"not null;index" json:"run_at"`
	Status        JobStatus  `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}
