// Package domain contains the tenant account model and its derived
// lifecycle status.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is derived from stored fields, never persisted.
type Status string

const (
	StatusCancelled     Status = "cancelled"
	StatusCancelPending Status = "cancel_pending"
	StatusExpired       Status = "expired"
	StatusPaused        Status = "paused"
	StatusActive        Status = "active"
)

// CardTokenSentinel replaces the raw payment token after the gateway
// sync so the token is never stored or resent.
const CardTokenSentinel = "tokenized"

// Account represents a tenant organization.
type Account struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyName  string       `gorm:"type:text;not null" json:"company_name"`
	ContactEmail string       `gorm:"type:text;not null" json:"contact_email"`

	AddressLine1 string `gorm:"type:text" json:"address_line1,omitempty"`
	AddressLine2 string `gorm:"type:text" json:"address_line2,omitempty"`
	City         string `gorm:"type:text" json:"city,omitempty"`
	Region       string `gorm:"type:text" json:"region,omitempty"`
	PostalCode   string `gorm:"type:text" json:"postal_code,omitempty"`
	CountryCode  string `gorm:"type:text" json:"country_code,omitempty"`

	Active       bool          `gorm:"not null;default:true;index" json:"active"`
	PlanID       snowflake.ID  `gorm:"not null;index" json:"plan_id"`
	PausedPlanID *snowflake.ID `gorm:"index" json:"paused_plan_id,omitempty"`

	// Addressing fields are plan-gated; each is unique when present.
	CustomPath *string `gorm:"type:text;uniqueIndex:ux_accounts_custom_path" json:"custom_path,omitempty"`
	Hostname   *string `gorm:"type:text;uniqueIndex:ux_accounts_hostname" json:"hostname,omitempty"`
	Subdomain  *string `gorm:"type:text;uniqueIndex:ux_accounts_subdomain" json:"subdomain,omitempty"`

	GatewayCustomerID     string `gorm:"type:text;uniqueIndex:ux_accounts_gateway_customer,where:gateway_customer_id <> ''" json:"gateway_customer_id,omitempty"`
	GatewaySubscriptionID string `gorm:"type:text;uniqueIndex:ux_accounts_gateway_subscription,where:gateway_subscription_id <> ''" json:"gateway_subscription_id,omitempty"`
	CardToken             string `gorm:"type:text" json:"-"`

	ExpiresAt   *time.Time `gorm:"" json:"expires_at,omitempty"`
	CancelledAt *time.Time `gorm:"" json:"cancelled_at,omitempty"`

	CancellationCategoryID *snowflake.ID `gorm:"" json:"cancellation_category_id,omitempty"`
	CancellationReasonID   *snowflake.ID `gorm:"" json:"cancellation_reason_id,omitempty"`
	CancellationMessage    string        `gorm:"type:text" json:"cancellation_message,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Status derives the lifecycle state from stored fields. First
// applicable rule wins.
func (a Account) Status(now time.Time) Status {
	switch {
	case !a.Active:
		return StatusCancelled
	case a.CancelledAt != nil:
		return StatusCancelPending
	case a.ExpiresAt != nil && a.ExpiresAt.Before(now):
		return StatusExpired
	case a.PausedPlanID != nil:
		return StatusPaused
	default:
		return StatusActive
	}
}

// EffectivePlanID is the plan billed on the gateway: the paused
// fallback when set, the current plan otherwise.
func (a Account) EffectivePlanID() snowflake.ID {
	if a.PausedPlanID != nil {
		return *a.PausedPlanID
	}
	return a.PlanID
}
