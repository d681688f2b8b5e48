package notify

import (
	"context"
	"time"

	"github.com/norahq/nora/pkg/nora/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DBQueue stores jobs in the notification_jobs table
type DBQueue struct {
	db *gorm.DB
}

// NewDBQueue creates a database-backed queue
func NewDBQueue(db *gorm.DB) *DBQueue {
	return &DBQueue{db: db}
}

// Enqueue inserts a pending job
func (q *DBQueue) Enqueue(ctx context.Context, job Job) error {
	row := models.NotificationJob{
		Kind:          job.Kind,
		Channel:       job.Channel,
		DeliveryToken: job.DeliveryToken,
		RunAt:         job.RunAt.UTC(),
		Status:        models.JobStatusPending,
	}
	return q.db.WithContext(ctx).Create(&row).Error
}

// Claim moves up to limit due pending jobs to processing and returns them.
// A job claimed concurrently by another worker is skipped.
func (q *DBQueue) Claim(ctx context.Context, now time.Time, limit int) ([]models.NotificationJob, error) {
	var due []models.NotificationJob
	err := q.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", models.JobStatusPending, now.UTC()).
		Order("run_at, id").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]models.NotificationJob, 0, len(due))
	for _, job := range due {
		result := q.db.WithContext(ctx).Model(&models.NotificationJob{}).
			Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
			Updates(map[string]interface{}{
				"status":   models.JobStatusProcessing,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 1 {
			job.Status = models.JobStatusProcessing
			job.Attempts++
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

// MarkSent records a delivered job and flags its delivery as sent at sentAt
func (q *DBQueue) MarkSent(ctx context.Context, job *models.NotificationJob, sentAt time.Time) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.Model(&models.NotificationJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       models.JobStatusSent,
			"processed_at": now,
			"last_error":   "",
		}).Error
		if err != nil {
			return err
		}

		hour := datatypes.NewTime(sentAt.Hour(), sentAt.Minute(), sentAt.Second(), 0)
		return tx.Model(&models.Delivery{}).
			Where("menu_delivery_id = ?", job.DeliveryToken).
			Updates(map[string]interface{}{
				"was_sending": true,
				"hour_sent":   hour,
			}).Error
	})
}

// MarkFailed records a job that will not be retried
func (q *DBQueue) MarkFailed(ctx context.Context, job *models.NotificationJob, cause error) error {
	return q.db.WithContext(ctx).Model(&models.NotificationJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":       models.JobStatusFailed,
		"processed_at": time.Now(),
		"last_error":   cause.Error(),
	}).Error
}

// Cleanup deletes finished jobs last updated before cutoff
func (q *DBQueue) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	result := q.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]models.JobStatus{models.JobStatusSent, models.JobStatusFailed}, cutoff).
		Delete(&models.NotificationJob{})
	return result.RowsAffected, result.Error
}
