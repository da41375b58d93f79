package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() plandomain.Repository {
	return &repo{}
}

const planColumns = `id, name, code, amount_cents, currency, billing_interval, interval_count,
	 trial_period_days, max_users, public, active, allow_custom_path, allow_hostname,
	 allow_subdomain, paused_plan_id, gateway_plan_id, statement, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*plandomain.Plan, error) {
	var plan plandomain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+` FROM plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter plandomain.ListFilter) ([]plandomain.Plan, error) {
	stmt := db.WithContext(ctx).Model(&plandomain.Plan{})
	if filter.PublicOnly {
		stmt = stmt.Where("public = ?", true)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}

	var plans []plandomain.Plan
	err := stmt.Order("amount_cents ASC, id ASC").Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *plandomain.Plan) error {
	return db.WithContext(ctx).Save(plan).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM plans WHERE id = ?`, id).Error
}

func (r *repo) SetGatewayPlanID(ctx context.Context, db *gorm.DB, id snowflake.ID, gatewayPlanID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plans SET gateway_plan_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		gatewayPlanID,
		id,
	).Error
}
