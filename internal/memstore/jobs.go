package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/google/uuid"
)

type jobRecord struct {
	job       jobs.Job
	status    string
	createdAt time.Time
}

// JobQueue is an in-memory jobs.Queue.
type JobQueue struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*jobRecord
	seq  time.Time
}

var _ jobs.Queue = (*JobQueue)(nil)

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{jobs: make(map[uuid.UUID]*jobRecord)}
}

func (q *JobQueue) Enqueue(ctx context.Context, jobType string, payload []byte, runAt time.Time, maxAttempts int) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Strictly increasing creation times keep FIFO order for equal run_at.
	created := time.Now()
	if !created.After(q.seq) {
		created = q.seq.Add(time.Nanosecond)
	}
	q.seq = created

	id := uuid.New()
	q.jobs[id] = &jobRecord{
		job: jobs.Job{
			ID:          id,
			Type:        jobType,
			Payload:     append([]byte(nil), payload...),
			MaxAttempts: maxAttempts,
			RunAt:       runAt,
		},
		status:    "pending",
		createdAt: created,
	}
	return id, nil
}

func (q *JobQueue) ClaimNext(ctx context.Context, now time.Time) (*jobs.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*jobRecord
	for _, r := range q.jobs {
		if r.status == "pending" && !r.job.RunAt.After(now) {
			due = append(due, r)
		}
	}
	if len(due) == 0 {
		return nil, jobs.ErrNoJob
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].job.RunAt.Equal(due[j].job.RunAt) {
			return due[i].createdAt.Before(due[j].createdAt)
		}
		return due[i].job.RunAt.Before(due[j].job.RunAt)
	})

	r := due[0]
	r.status = "processing"
	r.job.Attempts++
	job := r.job
	return &job, nil
}

func (q *JobQueue) Complete(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if r, ok := q.jobs[id]; ok {
		r.status = "completed"
	}
	return nil
}

func (q *JobQueue) Fail(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.jobs[id]
	if !ok {
		return nil
	}
	r.job.LastError = reason
	if r.job.Exhausted() || retryAt.IsZero() {
		r.status = "failed"
		return nil
	}
	r.status = "pending"
	r.job.RunAt = retryAt
	return nil
}

// Status returns a job's state: pending, processing, completed or failed.
func (q *JobQueue) Status(id uuid.UUID) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if r, ok := q.jobs[id]; ok {
		return r.status
	}
	return ""
}

// Pending returns the types of jobs not yet completed or failed, in
// enqueue order.
func (q *JobQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var recs []*jobRecord
	for _, r := range q.jobs {
		if r.status == "pending" || r.status == "processing" {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].createdAt.Before(recs[j].createdAt) })
	types := make([]string, len(recs))
	for i, r := range recs {
		types[i] = r.job.Type
	}
	return types
}
