package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invitationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invitation *invitationdomain.Invitation) error {
	return db.WithContext(ctx).Create(invitation).Error
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*invitationdomain.Invitation, error) {
	var invitation invitationdomain.Invitation
	err := db.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&invitation).Error
	if err != nil {
		return nil, err
	}
	if invitation.ID == 0 {
		return nil, nil
	}
	return &invitation, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]invitationdomain.Invitation, error) {
	var invitations []invitationdomain.Invitation
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").
		Find(&invitations).Error
	return invitations, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invitation *invitationdomain.Invitation) error {
	return db.WithContext(ctx).Save(invitation).Error
}
