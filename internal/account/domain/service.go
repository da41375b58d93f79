package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Account, error)
	Get(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Account, error)
	// Cancel validates against the cancellation policy; on success the
	// account is deactivated and a gateway cancel job is enqueued.
	Cancel(ctx context.Context, id string, req CancelRequest) (*Account, error)
	// Pause fails without side effects when the current plan has no
	// paused fallback configured.
	Pause(ctx context.Context, id string) (*Account, error)
	Unpause(ctx context.Context, id string) (*Account, error)
	// Restore re-activates and clears cancellation fields. It is
	// idempotent and deliberately leaves PausedPlanID untouched.
	Restore(ctx context.Context, id string) (*Account, error)
	Destroy(ctx context.Context, id string) error
}

type CreateRequest struct {
	CompanyName  string `json:"company_name"`
	ContactEmail string `json:"contact_email"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	Region       string `json:"region"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
	PlanID       string `json:"plan_id"`
	CustomPath   string `json:"custom_path"`
	Hostname     string `json:"hostname"`
	Subdomain    string `json:"subdomain"`
	CardToken    string `json:"card_token"`
	Paused       bool   `json:"paused"`
}

type UpdateRequest struct {
	CompanyName  *string `json:"company_name"`
	ContactEmail *string `json:"contact_email"`
	AddressLine1 *string `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         *string `json:"city"`
	Region       *string `json:"region"`
	PostalCode   *string `json:"postal_code"`
	CountryCode  *string `json:"country_code"`
	PlanID       *string `json:"plan_id"`
	CustomPath   *string `json:"custom_path"`
	Hostname     *string `json:"hostname"`
	Subdomain    *string `json:"subdomain"`
	CardToken    *string `json:"card_token"`
}

type CancelRequest struct {
	CategoryID string `json:"category_id"`
	ReasonID   string `json:"reason_id"`
	Message    string `json:"message"`
}

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrNoPausedPlan    = errors.New("no_paused_plan")
)
