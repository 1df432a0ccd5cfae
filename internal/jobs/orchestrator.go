package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/medbillai/medbill/constants"
	"github.com/medbillai/medbill/internal/common"
	"github.com/medbillai/medbill/internal/entity"
)

// Submission describes an uploaded document.
type Submission struct {
	Filename  string
	Path      string
	SizeBytes int64
}

// Orchestrator owns the worker pool. Submissions queue on a bounded channel
// with blocking enqueue: when the queue is full, callers wait instead of
// jobs being dropped.
type Orchestrator struct {
	store    *Store
	pipeline *Pipeline
	logger   *slog.Logger
	workers  int

	ch   chan string
	wg   sync.WaitGroup
	once sync.Once

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

type Option func(*Orchestrator)

func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.ch = make(chan string, n)
		}
	}
}

func NewOrchestrator(store *Store, pipeline *Pipeline, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
		workers:  4,
		ch:       make(chan string, 64),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.start()
	return o
}

func (o *Orchestrator) start() {
	o.once.Do(func() {
		for i := 0; i < o.workers; i++ {
			o.wg.Add(1)
			go func(workerID int) {
				defer o.wg.Done()
				o.logger.Info("jobs.worker.started", "worker_id", workerID)

				for jobID := range o.ch {
					o.pipeline.Run(jobID)
				}

				o.logger.Info("jobs.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit registers a job with all four stages waiting and queues it.
func (o *Orchestrator) Submit(ctx context.Context, doc Submission, opts entity.Options) (string, error) {
	if doc.Path == "" || doc.Filename == "" {
		return "", common.NewAppError("JOB_SUBMIT", "missing document path or filename", common.ErrInvalidInput)
	}

	// Registering with inflight under the same lock that Shutdown takes
	// guarantees the queue channel stays open until this send is done.
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", common.NewAppError("JOB_SUBMIT", "orchestrator is shutting down", common.ErrInternal)
	}
	o.inflight.Add(1)
	o.mu.Unlock()
	defer o.inflight.Done()

	jobID := uuid.New().String()
	sizeMB := float64(doc.SizeBytes) / (1024 * 1024)
	job := entity.NewJob(jobID, doc.Filename, doc.Path, sizeMB, opts)
	o.store.Put(job)

	select {
	case o.ch <- jobID:
		o.logger.Info("jobs.queued", "job_id", jobID, "filename", doc.Filename, "size_mb", fmt.Sprintf("%.2f", sizeMB))
	default:
		o.logger.Warn("jobs.queue_full", "job_id", jobID)
		select {
		case o.ch <- jobID:
		case <-ctx.Done():
			o.store.Update(jobID, func(j *entity.Job) {
				j.Status = constants.JobStatusFailed
				j.Error = "submission cancelled before processing started"
			})
			return "", ctx.Err()
		}
	}
	return jobID, nil
}

// Get returns the current snapshot of a job.
func (o *Orchestrator) Get(jobID string) (*entity.Job, bool) {
	return o.store.Get(jobID)
}

// Subscribe streams snapshots for a job until it is terminal.
func (o *Orchestrator) Subscribe(jobID string) (<-chan *entity.Job, func(), bool) {
	return o.store.Subscribe(jobID)
}

// Shutdown stops intake and drains queued jobs, bounded by ctx. The queue
// channel is closed only after every in-flight Submit has finished its send;
// workers keep consuming in the meantime, so a Submit blocked on a full
// queue unblocks rather than stalling the drain.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	senders := make(chan struct{})
	go func() { defer close(senders); o.inflight.Wait() }()
	select {
	case <-senders:
		close(o.ch)
	case <-ctx.Done():
		o.logger.Warn("jobs.shutdown.interrupted")
		return
	}

	done := make(chan struct{})
	go func() { defer close(done); o.wg.Wait() }()

	select {
	case <-ctx.Done():
		o.logger.Warn("jobs.shutdown.interrupted")
	case <-done:
		o.logger.Info("jobs.shutdown.drained")
	}
}
