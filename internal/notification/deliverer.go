package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Job struct {
	Notification *Notification
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "notification_id", job.Notification.ID)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DelivererConfig struct {
	MaxWorkers   int
	JobQueueSize int
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

// Deliverer polls undelivered notifications and pushes them through a sender
// using a fixed pool of workers.
type Deliverer struct {
	repo   Repository
	sender Sender
	logger *slog.Logger
	now    func() time.Time

	maxWorkers   int
	batchSize    int
	pollInterval time.Duration
	maxAttempts  int

	jobQueue   chan Job
	workerPool chan chan Job
	wg         sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]struct{}
	// finished since the current poll began; its listing may predate their update
	finished map[string]struct{}
}

func NewDeliverer(config DelivererConfig, repo Repository, sender Sender, logger *slog.Logger) *Deliverer {
	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &Deliverer{
		repo:         repo,
		sender:       sender,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		maxWorkers:   maxWorkers,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		jobQueue:     make(chan Job, jobQueueSize),
		workerPool:   make(chan chan Job, maxWorkers),
		inflight:     make(map[string]struct{}),
		finished:     make(map[string]struct{}),
	}
}

// Run starts the workers and polls until ctx is cancelled, then waits for
// in-progress deliveries to finish.
func (d *Deliverer) Run(ctx context.Context) error {
	for i := 0; i < d.maxWorkers; i++ {
		worker := NewWorker(i, d.workerPool, d.logger)
		worker.Start(ctx, &d.wg, d.process)
	}

	d.wg.Add(1)
	go d.dispatch(ctx)

	d.logger.Info("notification deliverer started",
		"max_workers", d.maxWorkers,
		"queue_size", cap(d.jobQueue),
		"poll_interval", d.pollInterval)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.Poll(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("failed to poll notifications", "error", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			d.logger.Info("shutting down notification deliverer")
			d.wg.Wait()
			d.logger.Info("notification deliverer shutdown complete")
			return nil
		}
	}
}

// Poll enqueues one batch of undelivered notifications and reports how many
// were queued. Rows already queued or in flight are skipped.
func (d *Deliverer) Poll(ctx context.Context) (int, error) {
	d.mu.Lock()
	clear(d.finished)
	d.mu.Unlock()

	pending, err := d.repo.ListUndelivered(ctx, d.maxAttempts, d.batchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, n := range pending {
		if !d.claim(n.ID) {
			continue
		}

		select {
		case d.jobQueue <- Job{Notification: n}:
			queued++
		default:
			d.release(n.ID)
			d.logger.Warn("notification queue full, deferring to next poll",
				"notification_id", n.ID,
				"queue_capacity", cap(d.jobQueue))
			return queued, nil
		}
	}

	if queued > 0 {
		d.logger.Debug("notifications queued", "count", queued, "queue_length", len(d.jobQueue))
	}
	return queued, nil
}

func (d *Deliverer) dispatch(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			d.logger.Debug("notification dispatcher shutting down")
			return
		}
	}
}

func (d *Deliverer) process(ctx context.Context, job Job) {
	n := job.Notification
	defer d.release(n.ID)

	// bookkeeping must land even when shutdown interrupts the send
	store := context.WithoutCancel(ctx)

	if err := d.sender.Send(ctx, n); err != nil {
		if ctx.Err() != nil {
			d.logger.Info("notification delivery interrupted by shutdown, will retry",
				"notification_id", n.ID,
				"event_type", n.Type)
			return
		}
		d.logger.Warn("notification delivery failed",
			"notification_id", n.ID,
			"event_type", n.Type,
			"attempts", n.Attempts+1,
			"error", err)
		if recErr := d.repo.RecordFailure(store, n.ID, err.Error()); recErr != nil {
			d.logger.Error("failed to record delivery failure", "notification_id", n.ID, "error", recErr)
		}
		return
	}

	if err := d.repo.MarkDelivered(store, n.ID, d.now()); err != nil {
		d.logger.Error("failed to mark notification delivered", "notification_id", n.ID, "error", err)
		return
	}

	d.logger.Info("notification delivered",
		"notification_id", n.ID,
		"event_type", n.Type)
}

func (d *Deliverer) claim(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[id]; busy {
		return false
	}
	if _, done := d.finished[id]; done {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Deliverer) release(id string) {
	d.mu.Lock()
	delete(d.inflight, id)
	d.finished[id] = struct{}{}
	d.mu.Unlock()
}
