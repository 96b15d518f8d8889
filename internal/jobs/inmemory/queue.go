package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/jobs"
	"github.com/dvloznov/spendbook/internal/logger"
)

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue is an in-memory job publisher and consumer backed by a channel and
// a fixed worker pool. It suits single-instance deployments and tests.
type Queue struct {
	jobChan   chan *jobs.IngestJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	store     jobs.JobStore
	workers   int
	closed    bool

	// cancels holds the cancel func of running jobs; canceled marks pending
	// jobs that must be skipped when dequeued.
	cancels  map[string]context.CancelFunc
	canceled map[string]bool
}

// NewQueue creates a queue. bufferSize determines how many jobs can wait
// before PublishIngest blocks.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 5
	}
	return &Queue{
		jobChan:   make(chan *jobs.IngestJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		cancels:   map[string]context.CancelFunc{},
		canceled:  map[string]bool{},
	}
}

// PublishIngest enqueues an ingestion job.
func (q *Queue) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			q.drain(ctx)
			return
		case <-q.closeChan:
			q.drain(ctx)
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			if ctx.Err() != nil {
				q.abandon(ctx, job)
				q.drain(ctx)
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// drain marks every job still buffered as canceled. It runs when the queue
// shuts down so no job is left pending forever.
func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case job := <-q.jobChan:
			q.abandon(ctx, job)
		default:
			return
		}
	}
}

// abandon records a dequeued job that will never run as canceled.
func (q *Queue) abandon(ctx context.Context, job *jobs.IngestJob) {
	if job == nil {
		return
	}
	q.mu.Lock()
	skipped := q.canceled[job.JobID]
	delete(q.canceled, job.JobID)
	q.mu.Unlock()
	if skipped {
		return
	}

	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx)
	now := time.Now().UTC()
	job.Status = jobs.JobStatusCanceled
	job.CompletedAt = &now
	job.Error = "queue stopped before the job ran"
	job.ErrorKind = "canceled"
	if err := q.store.SaveJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save abandoned job")
		return
	}
	log.Warn().Str("job_id", job.JobID).Msg("Job canceled at shutdown")
}

// processJob runs one job. Jobs are not retried.
func (q *Queue) processJob(ctx context.Context, job *jobs.IngestJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("statement_id", job.StatementID).
		Logger()

	jobCtx, cancel := context.WithCancel(logger.WithContext(ctx, log))
	defer cancel()

	q.mu.Lock()
	if q.canceled[job.JobID] {
		delete(q.canceled, job.JobID)
		q.mu.Unlock()
		return
	}
	q.cancels[job.JobID] = cancel
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.cancels, job.JobID)
		q.mu.Unlock()
	}()

	now := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &now
	_ = q.store.SaveJob(ctx, job)
	log.Info().Msg("Job started")

	report := func(p float64) {
		_ = q.store.UpdateProgress(ctx, job.JobID, p)
	}
	err := handler(jobCtx, job, report)

	if latest, gerr := q.store.GetJob(ctx, job.JobID); gerr == nil {
		job.Progress = latest.Progress
	}
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Msg("Job completed")
	case errors.Is(err, domain.ErrCanceled) || errors.Is(err, context.Canceled):
		job.Status = jobs.JobStatusCanceled
		job.Error = err.Error()
		job.ErrorKind = "canceled"
		log.Warn().Err(err).Msg("Job canceled")
	default:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		job.ErrorKind = domain.Kind(err)
		log.Error().Err(err).Str("kind", job.ErrorKind).Msg("Job failed")
	}
	_ = q.store.SaveJob(ctx, job)
}

// Cancel cancels a running job through its context, or marks a pending
// job so that workers skip it. Finished jobs are returned unchanged.
func (q *Queue) Cancel(ctx context.Context, jobID string) (*jobs.IngestJob, error) {
	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Done() {
		return job, nil
	}

	q.mu.Lock()
	cancel, running := q.cancels[jobID]
	if !running {
		q.canceled[jobID] = true
	}
	q.mu.Unlock()

	if running {
		cancel()
		return job, nil
	}

	now := time.Now().UTC()
	job.Status = jobs.JobStatusCanceled
	job.CompletedAt = &now
	job.ErrorKind = "canceled"
	if err := q.store.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Stop closes the queue and waits for in-flight jobs to complete. Jobs that
// never reached a worker are marked canceled.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.drain(ctx)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
	_ jobs.Canceler  = (*Queue)(nil)
)
