package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CancelInput carries the raw cancellation form fields. IDs are string
// form so handlers pass them through untouched.
type CancelInput struct {
	CategoryID string
	ReasonID   string
	Message    string
}

// Resolved is the validated outcome of a cancellation request.
type Resolved struct {
	CategoryID snowflake.ID
	ReasonID   *snowflake.ID
	Message    string
}

// Policy validates cancellation requests against the taxonomy.
// Validation failures come back as field-scoped *validation.Errors;
// dangling ids are hard errors.
type Policy interface {
	Validate(ctx context.Context, input CancelInput) (*Resolved, error)
}

type Service interface {
	Policy

	CreateCategory(ctx context.Context, req CategoryRequest) (*Category, error)
	UpdateCategory(ctx context.Context, id string, req CategoryRequest) (*Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)
	DeleteCategory(ctx context.Context, id string) error

	CreateReason(ctx context.Context, categoryID string, req ReasonRequest) (*Reason, error)
	UpdateReason(ctx context.Context, id string, req ReasonRequest) (*Reason, error)
	ListReasons(ctx context.Context, categoryID string, activeOnly bool) ([]Reason, error)
	DeleteReason(ctx context.Context, id string) error
}

type CategoryRequest struct {
	Name           string `json:"name"`
	Active         *bool  `json:"active"`
	AllowMessage   bool   `json:"allow_message"`
	RequireMessage bool   `json:"require_message"`
}

type ReasonRequest struct {
	Name           string `json:"name"`
	Active         *bool  `json:"active"`
	AllowMessage   bool   `json:"allow_message"`
	RequireMessage bool   `json:"require_message"`
}

type Repository interface {
	InsertCategory(ctx context.Context, db *gorm.DB, category *Category) error
	FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Category, error)
	ListCategories(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Category, error)
	UpdateCategory(ctx context.Context, db *gorm.DB, category *Category) error
	DeleteCategory(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertReason(ctx context.Context, db *gorm.DB, reason *Reason) error
	FindReasonByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reason, error)
	ListReasons(ctx context.Context, db *gorm.DB, categoryID snowflake.ID, activeOnly bool) ([]Reason, error)
	CountActiveReasons(ctx context.Context, db *gorm.DB, categoryID snowflake.ID) (int64, error)
	UpdateReason(ctx context.Context, db *gorm.DB, reason *Reason) error
	DeleteReason(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}

var (
	ErrCategoryNotFound = errors.New("cancellation_category_not_found")
	ErrReasonNotFound   = errors.New("cancellation_reason_not_found")
	ErrInvalidCategory  = errors.New("invalid_cancellation_category")
	ErrInvalidReason    = errors.New("invalid_cancellation_reason")
)
