// Package seed bootstraps the records a fresh install needs before the
// first request.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"github.com/saasykit/atlas/pkg/repository"
	"gorm.io/gorm"
)

const (
	defaultPlanName = "Free"
	defaultPlanCode = "free"
)

// EnsureDefaults seeds the default plan and the starter cancellation
// taxonomy. Idempotent; existing rows are left alone.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDefaultPlan(ctx, tx, node); err != nil {
			return err
		}
		return ensureStarterTaxonomy(ctx, tx, node)
	})
}

func ensureDefaultPlan(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	plans := repository.ProvideStore[plandomain.Plan](tx)
	count, err := plans.Count(ctx, &plandomain.Plan{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	plan := plandomain.Plan{
		ID:              node.Generate(),
		Name:            defaultPlanName,
		Code:            defaultPlanCode,
		AmountCents:     0,
		Currency:        "USD",
		Interval:        plandomain.IntervalMonth,
		IntervalCount:   1,
		Public:          true,
		Active:          true,
		AllowCustomPath: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return plans.Create(ctx, &plan)
}

func ensureStarterTaxonomy(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	categories := repository.ProvideStore[cancellationdomain.Category](tx)
	reasons := repository.ProvideStore[cancellationdomain.Reason](tx)
	count, err := categories.Count(ctx, &cancellationdomain.Category{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	starter := []struct {
		name           string
		requireMessage bool
		reasons        []string
	}{
		{name: "Too expensive", reasons: []string{"Over budget", "Found a cheaper alternative"}},
		{name: "Missing features", requireMessage: true, reasons: []string{"Needed integration missing"}},
		{name: "No longer needed", reasons: nil},
	}

	for _, entry := range starter {
		category := cancellationdomain.Category{
			ID:             node.Generate(),
			Name:           entry.name,
			Active:         true,
			AllowMessage:   true,
			RequireMessage: entry.requireMessage,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := categories.Create(ctx, &category); err != nil {
			return err
		}
		for _, name := range entry.reasons {
			reason := cancellationdomain.Reason{
				ID:           node.Generate(),
				CategoryID:   category.ID,
				Name:         name,
				Active:       true,
				AllowMessage: true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := reasons.Create(ctx, &reason); err != nil {
				return err
			}
		}
	}
	return nil
}
