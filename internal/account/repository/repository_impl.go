package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() accountdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *accountdomain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindActiveByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		Limit(1).Find(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindActiveByCustomPath(ctx context.Context, db *gorm.DB, path string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT accounts.* FROM accounts
		 JOIN plans ON plans.id = accounts.plan_id
		 WHERE accounts.custom_path = ? AND accounts.active = ? AND plans.allow_custom_path = ?
		 LIMIT 1`,
		path,
		true,
		true,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindActiveByHostname(ctx context.Context, db *gorm.DB, hostname string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT accounts.* FROM accounts
		 JOIN plans ON plans.id = accounts.plan_id
		 WHERE accounts.hostname = ? AND accounts.active = ? AND plans.allow_hostname = ?
		 LIMIT 1`,
		hostname,
		true,
		true,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindActiveBySubdomain(ctx context.Context, db *gorm.DB, subdomain string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT accounts.* FROM accounts
		 JOIN plans ON plans.id = accounts.plan_id
		 WHERE accounts.subdomain = ? AND accounts.active = ? AND plans.allow_subdomain = ?
		 LIMIT 1`,
		subdomain,
		true,
		true,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&accounts).Error
	return accounts, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, account *accountdomain.Account) error {
	return db.WithContext(ctx).Save(account).Error
}

func (r *repo) ApplyCancellation(ctx context.Context, db *gorm.DB, account *accountdomain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET active = ?, cancelled_at = ?, cancellation_category_id = ?,
		     cancellation_reason_id = ?, cancellation_message = ?, updated_at = ?
		 WHERE id = ?`,
		false,
		account.CancelledAt,
		account.CancellationCategoryID,
		account.CancellationReasonID,
		account.CancellationMessage,
		account.UpdatedAt,
		account.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM invitations WHERE account_id = ?`, id).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM app_events WHERE account_id = ?`, id).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM accounts WHERE id = ?`, id).Error
	})
}

func (r *repo) SetGatewayRefs(ctx context.Context, db *gorm.DB, update accountdomain.GatewayRefsUpdate) error {
	values := map[string]any{}
	if update.CustomerID != nil {
		values["gateway_customer_id"] = *update.CustomerID
	}
	if update.SubscriptionID != nil {
		values["gateway_subscription_id"] = *update.SubscriptionID
	}
	if update.CardToken != nil {
		values["card_token"] = *update.CardToken
	}
	if update.ExpiresAt != nil {
		values["expires_at"] = *update.ExpiresAt
	}
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&accountdomain.Account{}).
		Where("id = ?", update.AccountID).
		Updates(values).Error
}
