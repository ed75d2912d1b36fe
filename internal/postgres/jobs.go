package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/emporium/internal/jobs"
)

// JobQueue implements jobs.Queue on the jobs table.
type JobQueue struct {
	pool *pgxpool.Pool
}

var _ jobs.Queue = (*JobQueue)(nil)

// NewJobQueue creates a new PostgreSQL-backed job queue.
func NewJobQueue(pool *pgxpool.Pool) *JobQueue {
	return &JobQueue{pool: pool}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobType string, payload []byte, runAt time.Time, maxAttempts int) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.pool.QueryRow(ctx, `
		INSERT INTO jobs (job_type, payload, run_at, max_attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		jobType, payload, runAt, maxAttempts,
	).Scan(&id)
	return id, err
}

// ClaimNext uses SKIP LOCKED so concurrent workers never claim the same job.
func (q *JobQueue) ClaimNext(ctx context.Context, now time.Time) (*jobs.Job, error) {
	var (
		j       jobs.Job
		payload []byte
	)
	err := q.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND run_at <= $1
			ORDER BY run_at, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, job_type, payload, attempts, max_attempts, run_at, COALESCE(last_error, '')`,
		now,
	).Scan(&j.ID, &j.Type, &payload, &j.Attempts, &j.MaxAttempts, &j.RunAt, &j.LastError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, jobs.ErrNoJob
		}
		return nil, err
	}
	j.Payload = payload
	return &j, nil
}

func (q *JobQueue) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', updated_at = now() WHERE id = $1`, id)
	return err
}

func (q *JobQueue) Fail(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time) error {
	var next *time.Time
	if !retryAt.IsZero() {
		next = &retryAt
	}
	_, err := q.pool.Exec(ctx, `
		UPDATE jobs
		SET last_error = $2,
		    status = CASE WHEN attempts >= max_attempts OR $3::timestamptz IS NULL THEN 'failed' ELSE 'pending' END,
		    run_at = COALESCE($3::timestamptz, run_at),
		    updated_at = now()
		WHERE id = $1`,
		id, reason, next,
	)
	return err
}
