package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindActiveByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	// FindActiveByCustomPath additionally requires the account's plan to
	// allow custom paths; likewise for hostname and subdomain lookups.
	FindActiveByCustomPath(ctx context.Context, db *gorm.DB, path string) (*Account, error)
	FindActiveByHostname(ctx context.Context, db *gorm.DB, hostname string) (*Account, error)
	FindActiveBySubdomain(ctx context.Context, db *gorm.DB, subdomain string) (*Account, error)
	List(ctx context.Context, db *gorm.DB) ([]Account, error)
	Update(ctx context.Context, db *gorm.DB, account *Account) error
	// ApplyCancellation flips active off and stamps cancellation fields
	// in a single write.
	ApplyCancellation(ctx context.Context, db *gorm.DB, account *Account) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetGatewayRefs(ctx context.Context, db *gorm.DB, update GatewayRefsUpdate) error
}

// GatewayRefsUpdate writes back gateway identifiers after a successful
// remote call. Nil pointers leave the column untouched.
type GatewayRefsUpdate struct {
	AccountID      snowflake.ID
	CustomerID     *string
	SubscriptionID *string
	CardToken      *string
	ExpiresAt      *time.Time
}
