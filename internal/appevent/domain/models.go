// Package domain contains the append-only lifecycle event log.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Level grades lifecycle events.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelAlert   Level = "alert"
)

func (l Level) Valid() bool {
	switch l {
	case LevelSuccess, LevelInfo, LevelWarning, LevelAlert:
		return true
	}
	return false
}

// MaxMessageLen bounds event messages; longer messages are truncated,
// never rejected.
const MaxMessageLen = 512

// AppEvent is an immutable audit record. Rows are only removed by the
// cascading account delete.
type AppEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Level     Level             `gorm:"type:text;not null" json:"level"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	AccountID *snowflake.ID     `gorm:"index" json:"account_id,omitempty"`
	UserID    *snowflake.ID     `gorm:"index" json:"user_id,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (AppEvent) TableName() string { return "app_events" }

type ListRequest struct {
	AccountID string
	Level     Level
	Limit     int
}

// Recorder appends lifecycle events. Record never returns an error to
// its caller; persistence failures are logged and swallowed so a
// logging failure cannot unwind the operation that triggered it.
type Recorder interface {
	Record(ctx context.Context, level Level, message string, opts ...Option)
	List(ctx context.Context, req ListRequest) ([]AppEvent, error)
}

// Option attaches optional references to an event.
type Option func(*AppEvent)

func WithAccount(id snowflake.ID) Option {
	return func(e *AppEvent) { e.AccountID = &id }
}

func WithUser(id snowflake.ID) Option {
	return func(e *AppEvent) { e.UserID = &id }
}

func WithMetadata(metadata map[string]any) Option {
	return func(e *AppEvent) { e.Metadata = metadata }
}

var ErrInvalidLevel = errors.New("invalid_event_level")
