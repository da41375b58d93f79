package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Dispatcher enqueues gateway sync work. Enqueue is synchronous and
// fast; execution happens out-of-band on the worker pool.
type Dispatcher interface {
	Enqueue(ctx context.Context, kind Kind, targetID snowflake.ID) error
}

type ListJobsRequest struct {
	Queue  string
	Status JobStatus
	Kind   Kind
	Limit  int
}

type Service interface {
	Dispatcher
	List(ctx context.Context, req ListJobsRequest) ([]SyncJob, error)
	// RunPending claims and executes up to limit due jobs in priority
	// then FIFO order. Returns the number of jobs executed.
	RunPending(ctx context.Context, limit int) (int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *SyncJob) error
	ClaimNext(ctx context.Context, db *gorm.DB, queue string, now time.Time, limit int) ([]SyncJob, error)
	MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, runAfter, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, now time.Time) error
	Release(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	List(ctx context.Context, db *gorm.DB, req ListJobsRequest) ([]SyncJob, error)
	CountPending(ctx context.Context, db *gorm.DB, queue string) (int64, error)
}

var (
	ErrInvalidKind   = errors.New("invalid_job_kind")
	ErrInvalidTarget = errors.New("invalid_job_target")
	ErrJobNotFound   = errors.New("job_not_found")
)
