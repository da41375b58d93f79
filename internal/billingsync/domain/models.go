// Package domain contains the billing sync job queue contract. Only
// entity ids cross the queue boundary; handlers re-read the
// authoritative local record at execution time.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind identifies the gateway synchronization a job performs.
type Kind string

const (
	KindPlanCreate     Kind = "plan.create"
	KindPlanUpdate     Kind = "plan.update"
	KindPlanDelete     Kind = "plan.delete"
	KindAccountCreate  Kind = "account.create"
	KindAccountUpdate  Kind = "account.update"
	KindAccountRestore Kind = "account.restore"
	KindAccountCancel  Kind = "account.cancel"
)

// Priority returns the dispatch priority for the kind; lower runs
// first. Plan creation must complete before accounts reference the
// plan's gateway id; account cancellation tolerates delay.
func (k Kind) Priority() int {
	switch k {
	case KindPlanCreate:
		return 0
	case KindPlanUpdate:
		return 1
	case KindPlanDelete:
		return 2
	case KindAccountCreate:
		return 3
	case KindAccountUpdate:
		return 4
	case KindAccountRestore:
		return 5
	case KindAccountCancel:
		return 6
	default:
		return 10
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindPlanCreate, KindPlanUpdate, KindPlanDelete,
		KindAccountCreate, KindAccountUpdate, KindAccountRestore, KindAccountCancel:
		return true
	}
	return false
}

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// QueueGateway isolates gateway traffic from unrelated background work.
const QueueGateway = "gateway"

// SyncJob is a durable unit of work against the billing gateway.
type SyncJob struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Queue       string            `gorm:"type:text;not null;index:ix_sync_jobs_claim,priority:1" json:"queue"`
	Kind        Kind              `gorm:"type:text;not null" json:"kind"`
	TargetID    snowflake.ID      `gorm:"not null;index" json:"target_id"`
	Priority    int               `gorm:"not null;index:ix_sync_jobs_claim,priority:3" json:"priority"`
	Status      JobStatus         `gorm:"type:text;not null;index:ix_sync_jobs_claim,priority:2" json:"status"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int               `gorm:"not null" json:"max_attempts"`
	LastError   string            `gorm:"type:text" json:"last_error,omitempty"`
	RunAfter    time.Time         `gorm:"not null" json:"run_after"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (SyncJob) TableName() string { return "billing_sync_jobs" }
