// Package notify schedules and sends the selection links of deliveries to
// their distribution channels.
package notify

import (
	"context"
	"time"

	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/models"
)

// SendDelay is added to the distribution hour when computing a job's run time
const SendDelay = 4 * time.Hour

// Job describes one scheduled selection-link message
type Job struct {
	Kind          string
	Channel       string
	DeliveryToken string
	RunAt         time.Time
}

// Queue accepts jobs for later execution
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// RunAt returns when the selection link of delivery is sent: the delivery
// date at the distribution's hour and minute (UTC), plus SendDelay.
func RunAt(delivery *models.Delivery, dist *models.Distribution) time.Time {
	hour := time.Duration(dist.DistributionHourLink)
	day := models.CalendarDate(time.Time(delivery.Date))
	return day.
		Add(hour.Truncate(time.Hour)).
		Add((hour % time.Hour).Truncate(time.Minute)).
		Add(SendDelay)
}

// NewJob builds the selection-link job of delivery
func NewJob(delivery *models.Delivery, dist *models.Distribution) Job {
	return Job{
		Kind:          models.JobKindSendSelectionLink,
		Channel:       dist.LinkID,
		DeliveryToken: delivery.MenuDeliveryID,
		RunAt:         RunAt(delivery, dist),
	}
}

// Scheduler hands jobs to a Queue without letting failures reach the caller
type Scheduler struct {
	queue   Queue
	logger  *log.Logger
	timeout time.Duration
}

// NewScheduler creates a scheduler. timeout bounds every enqueue call.
func NewScheduler(queue Queue, logger *log.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Scheduler{queue: queue, logger: logger, timeout: timeout}
}

// Schedule enqueues the selection link of delivery. Errors are logged only.
func (s *Scheduler) Schedule(ctx context.Context, delivery *models.Delivery, dist *models.Distribution) {
	job := NewJob(delivery, dist)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.queue.Enqueue(ctx, job)
	s.logger.LogNotification(0, job.DeliveryToken, job.Channel, "enqueue", err)
}
