package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Plan, error)
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context, filter ListFilter) ([]Plan, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Plan, error)
	Delete(ctx context.Context, id string) error
}

type CreateRequest struct {
	Name            string    `json:"name"`
	Code            string    `json:"code"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Interval        Interval  `json:"interval"`
	IntervalCount   int       `json:"interval_count"`
	TrialPeriodDays int       `json:"trial_period_days"`
	MaxUsers        int       `json:"max_users"`
	Public          bool      `json:"public"`
	AllowCustomPath bool      `json:"allow_custom_path"`
	AllowHostname   bool      `json:"allow_hostname"`
	AllowSubdomain  bool      `json:"allow_subdomain"`
	PausedPlanID    string    `json:"paused_plan_id"`
	Statement       string    `json:"statement"`
}

// UpdateRequest uses pointers so absent fields are left untouched.
type UpdateRequest struct {
	Name            *string   `json:"name"`
	AmountCents     *int64    `json:"amount_cents"`
	Currency        *string   `json:"currency"`
	Interval        *Interval `json:"interval"`
	IntervalCount   *int      `json:"interval_count"`
	TrialPeriodDays *int      `json:"trial_period_days"`
	MaxUsers        *int      `json:"max_users"`
	Public          *bool     `json:"public"`
	Active          *bool     `json:"active"`
	AllowCustomPath *bool     `json:"allow_custom_path"`
	AllowHostname   *bool     `json:"allow_hostname"`
	AllowSubdomain  *bool     `json:"allow_subdomain"`
	PausedPlanID    *string   `json:"paused_plan_id"`
	Statement       *string   `json:"statement"`
}

var (
	ErrPlanNotFound       = errors.New("plan_not_found")
	ErrInvalidPlan        = errors.New("invalid_plan")
	ErrInvalidInterval    = errors.New("invalid_interval")
	ErrInvalidPausedPlan  = errors.New("invalid_paused_plan")
	ErrPlanInUse          = errors.New("plan_in_use")
)
