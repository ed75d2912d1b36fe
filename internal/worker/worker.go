// Package worker drains the job queue in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/telemetry"
)

// Handler runs one claimed job. *jobs.Processor satisfies it.
type Handler interface {
	Process(ctx context.Context, job *jobs.Job) error
}

type Config struct {
	// WorkerID tags log lines; generated when empty.
	WorkerID string

	PollInterval   time.Duration
	MaxConcurrency int

	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerID == "" {
		c.WorkerID = "worker-" + uuid.NewString()[:8]
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 5
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	return c
}

type Worker struct {
	config  Config
	queue   jobs.Queue
	handler Handler
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewWorker builds a worker. metrics may be nil.
func NewWorker(queue jobs.Queue, handler Handler, metrics *telemetry.BusinessMetrics, config Config, logger *slog.Logger) *Worker {
	config = config.withDefaults()
	return &Worker{
		config:  config,
		queue:   queue,
		handler: handler,
		metrics: metrics,
		logger:  logger.With("worker_id", config.WorkerID),
		now:     time.Now,
	}
}

// Start polls until ctx is cancelled, then waits for claimed jobs to finish.
// Each tick hands a free slot to a drainer that keeps claiming until the
// queue is empty; a tick with every slot busy is skipped.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	slots := make(chan struct{}, w.config.MaxConcurrency)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}

		select {
		case slots <- struct{}{}:
		default:
			continue
		}
		w.wg.Add(1)
		go func() {
			defer func() { <-slots; w.wg.Done() }()
			for ctx.Err() == nil && w.runOne(ctx) {
			}
		}()
	}
}

// runOne claims and settles a single job. It reports whether a job was
// claimed.
func (w *Worker) runOne(ctx context.Context) bool {
	job, err := w.queue.ClaimNext(ctx, w.now())
	if err != nil {
		if !errors.Is(err, jobs.ErrNoJob) && ctx.Err() == nil {
			w.logger.Error("failed to claim job", "error", err)
		}
		return false
	}

	logger := w.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	logger.Debug("processing job")

	// A claimed job is settled even during shutdown.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err = w.process(jobCtx, job)
	w.metrics.JobFinished(job.Type, err, time.Since(start))
	w.settle(jobCtx, logger, job, err)
	return true
}

// process runs the handler, turning a panic into a job error.
func (w *Worker) process(ctx context.Context, job *jobs.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("job panicked", "job_id", job.ID, "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return w.handler.Process(ctx, job)
}

// settle records the outcome. Permanent errors fail the job outright; others
// are retried with backoff until attempts run out. Jobs that end up failed
// are reported to Sentry.
func (w *Worker) settle(ctx context.Context, logger *slog.Logger, job *jobs.Job, err error) {
	if err == nil {
		logger.Info("job completed")
		if cerr := w.queue.Complete(ctx, job.ID); cerr != nil {
			logger.Error("failed to complete job", "error", cerr)
		}
		return
	}

	var retryAt time.Time
	permanent := jobs.Permanent(err)
	if !permanent {
		retryAt = w.now().Add(jobs.Backoff(job.Attempts))
	}
	logger.Error("job failed",
		"max_attempts", job.MaxAttempts,
		"permanent", permanent,
		"error", err,
	)
	if ferr := w.queue.Fail(ctx, job.ID, err.Error(), retryAt); ferr != nil {
		logger.Error("failed to record job failure", "error", ferr)
	}
	if permanent || job.Exhausted() {
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
			"job_id":   job.ID.String(),
			"job_type": job.Type,
			"attempts": job.Attempts,
		})
	}
}
