// Package domain contains account membership invitations.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
)

// Invitation belongs to an account and is removed when the account is
// destroyed.
type Invitation struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      string       `gorm:"type:text;not null;default:'member'" json:"role"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_invitations_code" json:"-"`
	Status    Status       `gorm:"type:text;not null" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

type InviteRequest struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type AcceptRequest struct {
	Code string `json:"code"`
}

type Service interface {
	// Invite records the invitation and mails the recipient. The mail
	// send is fire-and-forget; a delivery failure never fails the call.
	Invite(ctx context.Context, req InviteRequest) (*Invitation, error)
	Accept(ctx context.Context, req AcceptRequest) (*Invitation, error)
	List(ctx context.Context, accountID string) ([]Invitation, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invitation *Invitation) error
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Invitation, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]Invitation, error)
	Update(ctx context.Context, db *gorm.DB, invitation *Invitation) error
}

var (
	ErrInvitationNotFound = errors.New("invitation_not_found")
	ErrInvalidInvitation  = errors.New("invalid_invitation")
	ErrAlreadyAccepted    = errors.New("invitation_already_accepted")
)
