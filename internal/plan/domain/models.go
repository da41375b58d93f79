// Package domain contains persistence models for billing plans.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Interval enumerates billing period units accepted by the gateway.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Plan represents a billing tier. Once a plan carries a gateway id its
// monetary terms are immutable; changing them would desynchronize
// already-billed subscriptions.
type Plan struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name            string        `gorm:"type:text;not null" json:"name"`
	Code            string        `gorm:"type:text;not null;uniqueIndex:ux_plans_code" json:"code"`
	AmountCents     int64         `gorm:"not null" json:"amount_cents"`
	Currency        string        `gorm:"type:text;not null" json:"currency"`
	Interval        Interval      `gorm:"column:billing_interval;type:text;not null" json:"interval"`
	IntervalCount   int           `gorm:"not null;default:1" json:"interval_count"`
	TrialPeriodDays int           `gorm:"not null;default:0" json:"trial_period_days"`
	MaxUsers        int           `gorm:"not null;default:0" json:"max_users"`
	Public          bool          `gorm:"not null;default:false" json:"public"`
	Active          bool          `gorm:"not null;default:true" json:"active"`
	AllowCustomPath bool          `gorm:"not null;default:false" json:"allow_custom_path"`
	AllowHostname   bool          `gorm:"not null;default:false" json:"allow_hostname"`
	AllowSubdomain  bool          `gorm:"not null;default:false" json:"allow_subdomain"`
	PausedPlanID    *snowflake.ID `gorm:"index" json:"paused_plan_id,omitempty"`
	GatewayPlanID   string        `gorm:"type:text;uniqueIndex:ux_plans_gateway_id,where:gateway_plan_id <> ''" json:"gateway_plan_id,omitempty"`
	Statement       string        `gorm:"type:text" json:"statement,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// Billed reports whether the plan has been created on the gateway.
func (p Plan) Billed() bool { return p.GatewayPlanID != "" }
