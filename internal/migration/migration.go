// Package migration creates the schema on startup so the service is
// usable out of the box for local and self-hosted environments.
package migration

import (
	"errors"

	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	return db.AutoMigrate(
		&plandomain.Plan{},
		&accountdomain.Account{},
		&cancellationdomain.Category{},
		&cancellationdomain.Reason{},
		&billingsyncdomain.SyncJob{},
		&appeventdomain.AppEvent{},
		&invitationdomain.Invitation{},
	)
}
