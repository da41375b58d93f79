// Package domain contains the two-level cancellation taxonomy.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Category is the top level of the cancellation taxonomy.
type Category struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"type:text;not null;uniqueIndex:ux_cancellation_categories_name" json:"name"`
	Active         bool         `gorm:"not null;default:true" json:"active"`
	AllowMessage   bool         `gorm:"not null;default:false" json:"allow_message"`
	RequireMessage bool         `gorm:"not null;default:false" json:"require_message"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Category) TableName() string { return "cancellation_categories" }

// Reason belongs to exactly one category.
type Reason struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	CategoryID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_cancellation_reasons_name,priority:1" json:"category_id"`
	Name           string       `gorm:"type:text;not null;uniqueIndex:ux_cancellation_reasons_name,priority:2" json:"name"`
	Active         bool         `gorm:"not null;default:true" json:"active"`
	AllowMessage   bool         `gorm:"not null;default:false" json:"allow_message"`
	RequireMessage bool         `gorm:"not null;default:false" json:"require_message"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Reason) TableName() string { return "cancellation_reasons" }
