package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/norahq/nora/pkg/nora/config"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/models"
)

// retention is how long finished jobs are kept
const retention = 7 * 24 * time.Hour

// Worker polls the queue on its own ticker
type Worker struct {
	id      int
	manager *Manager
	stopCh  chan struct{}
}

// Manager runs a pool of workers over a DBQueue
type Manager struct {
	queue  *DBQueue
	sender Sender
	logger *log.Logger
	config *config.NotifyConfig
	clock  func() time.Time

	workers []*Worker
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a manager. clock returns the current time in the
// configured zone and stamps the delivery's hour_sent.
func NewManager(queue *DBQueue, sender Sender, logger *log.Logger, cfg *config.NotifyConfig, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		queue:  queue,
		sender: sender,
		logger: logger,
		config: cfg,
		clock:  clock,
		stopCh: make(chan struct{}),
	}
}

// Start launches the workers and the cleanup loop
func (m *Manager) Start(ctx context.Context) {
	workerCount := m.config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	m.logger.WithField("worker_count", workerCount).Info("Starting notification workers")

	for i := 0; i < workerCount; i++ {
		worker := &Worker{id: i + 1, manager: m, stopCh: make(chan struct{})}
		m.workers = append(m.workers, worker)
		m.wg.Add(1)
		go worker.start(ctx)
	}

	m.wg.Add(1)
	go m.cleanupLoop(ctx)
}

// Stop signals every worker and waits for them to finish
func (m *Manager) Stop() {
	m.logger.Info("Stopping notification workers...")

	close(m.stopCh)
	for _, worker := range m.workers {
		close(worker.stopCh)
	}
	m.wg.Wait()

	m.logger.Info("Notification workers stopped")
}

func (w *Worker) start(ctx context.Context) {
	defer w.manager.wg.Done()

	w.manager.logger.WithField("worker_id", w.id).Info("Worker started")

	ticker := time.NewTicker(w.manager.config.PollEvery())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.manager.logger.WithField("worker_id", w.id).Info("Worker stopped by context")
			return
		case <-w.stopCh:
			w.manager.logger.WithField("worker_id", w.id).Info("Worker stopped")
			return
		case <-ticker.C:
			if _, err := w.manager.ProcessDue(ctx); err != nil {
				w.manager.logger.WithError(err).WithField("worker_id", w.id).Error("Failed to process notification queue")
			}
		}
	}
}

// ProcessDue claims the jobs due now and sends them. It returns how many
// jobs were handled, successfully or not.
func (m *Manager) ProcessDue(ctx context.Context) (int, error) {
	batch := m.config.BatchSize
	if batch <= 0 {
		batch = 10
	}

	jobs, err := m.queue.Claim(ctx, m.clock(), batch)
	if err != nil {
		return 0, err
	}

	for i := range jobs {
		m.process(ctx, &jobs[i])
	}
	return len(jobs), nil
}

func (m *Manager) process(ctx context.Context, job *models.NotificationJob) {
	var err error
	if job.Kind != models.JobKindSendSelectionLink {
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	} else {
		err = m.sender.Send(ctx, job.Channel, job.DeliveryToken)
	}

	if err != nil {
		m.logger.LogNotification(job.ID, job.DeliveryToken, job.Channel, "send", err)
		if markErr := m.queue.MarkFailed(ctx, job, err); markErr != nil {
			m.logger.WithError(markErr).WithField("job_id", job.ID).Error("Failed to mark job failed")
		}
		return
	}

	if err := m.queue.MarkSent(ctx, job, m.clock()); err != nil {
		m.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to mark job sent")
		return
	}
	m.logger.LogNotification(job.ID, job.DeliveryToken, job.Channel, "sent", nil)
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			removed, err := m.queue.Cleanup(ctx, time.Now().Add(-retention))
			if err != nil {
				m.logger.WithError(err).Error("Failed to clean up notification jobs")
				continue
			}
			if removed > 0 {
				m.logger.WithField("cleaned_jobs", removed).Info("Cleaned up old notification jobs")
			}
		}
	}
}
