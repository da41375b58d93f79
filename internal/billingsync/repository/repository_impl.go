package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingsyncdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *billingsyncdomain.SyncJob) error {
	return db.WithContext(ctx).Create(job).Error
}

// ClaimNext flips due pending jobs to running inside one transaction.
// Ordering is priority first, then insertion order within a priority.
func (r *repo) ClaimNext(ctx context.Context, db *gorm.DB, queue string, now time.Time, limit int) ([]billingsyncdomain.SyncJob, error) {
	var jobs []billingsyncdomain.SyncJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(
			`SELECT * FROM billing_sync_jobs
			 WHERE queue = ? AND status = ? AND run_after <= ?
			 ORDER BY priority ASC, id ASC
			 LIMIT ?`,
			queue,
			billingsyncdomain.JobStatusPending,
			now,
			limit,
		).Scan(&jobs).Error
		if err != nil {
			return err
		}
		for i := range jobs {
			res := tx.Exec(
				`UPDATE billing_sync_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
				billingsyncdomain.JobStatusRunning,
				now,
				jobs[i].ID,
				billingsyncdomain.JobStatusPending,
			)
			if res.Error != nil {
				return res.Error
			}
			jobs[i].Status = billingsyncdomain.JobStatusRunning
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_sync_jobs SET status = ?, last_error = '', updated_at = ? WHERE id = ?`,
		billingsyncdomain.JobStatusSucceeded,
		now,
		id,
	).Error
}

func (r *repo) MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, runAfter, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_sync_jobs
		 SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ?
		 WHERE id = ?`,
		billingsyncdomain.JobStatusPending,
		attempts,
		lastError,
		runAfter,
		now,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_sync_jobs
		 SET status = ?, attempts = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		billingsyncdomain.JobStatusFailed,
		attempts,
		lastError,
		now,
		id,
	).Error
}

// Release puts a claimed job back to pending untouched, used on
// shutdown mid-batch.
func (r *repo) Release(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_sync_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		billingsyncdomain.JobStatusPending,
		now,
		id,
		billingsyncdomain.JobStatusRunning,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req billingsyncdomain.ListJobsRequest) ([]billingsyncdomain.SyncJob, error) {
	stmt := db.WithContext(ctx).Model(&billingsyncdomain.SyncJob{})
	if req.Queue != "" {
		stmt = stmt.Where("queue = ?", req.Queue)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.Kind != "" {
		stmt = stmt.Where("kind = ?", req.Kind)
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var jobs []billingsyncdomain.SyncJob
	err := stmt.Order("created_at DESC, id DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

func (r *repo) CountPending(ctx context.Context, db *gorm.DB, queue string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&billingsyncdomain.SyncJob{}).
		Where("queue = ? AND status = ?", queue, billingsyncdomain.JobStatusPending).
		Count(&count).Error
	return count, err
}
