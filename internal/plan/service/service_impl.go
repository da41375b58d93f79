package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/clock"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"github.com/saasykit/atlas/internal/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo       plandomain.Repository
	dispatcher billingsyncdomain.Dispatcher
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       plandomain.Repository
	Dispatcher billingsyncdomain.Dispatcher
}

func NewService(p Params) plandomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:       p.Repo,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Create(ctx context.Context, req plandomain.CreateRequest) (*plandomain.Plan, error) {
	verr := &validation.Errors{}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		verr.Add("name", "required", "name is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(currency) != 3 {
		verr.Add("currency", "invalid", "currency must be a 3-letter code")
	}
	if req.AmountCents < 0 {
		verr.Add("amount_cents", "invalid", "amount must not be negative")
	}
	if req.Interval != plandomain.IntervalMonth && req.Interval != plandomain.IntervalYear {
		verr.Add("interval", "invalid", "interval must be month or year")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = name
	}
	code = slug.Make(code)

	intervalCount := req.IntervalCount
	if intervalCount <= 0 {
		intervalCount = 1
	}

	var pausedPlanID *snowflake.ID
	if strings.TrimSpace(req.PausedPlanID) != "" {
		id, err := snowflake.ParseString(strings.TrimSpace(req.PausedPlanID))
		if err != nil {
			return nil, plandomain.ErrInvalidPausedPlan
		}
		fallback, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if fallback == nil {
			return nil, plandomain.ErrInvalidPausedPlan
		}
		pausedPlanID = &id
	}

	now := s.clock.Now()
	plan := &plandomain.Plan{
		ID:              s.genID.Generate(),
		Name:            name,
		Code:            code,
		AmountCents:     req.AmountCents,
		Currency:        currency,
		Interval:        req.Interval,
		IntervalCount:   intervalCount,
		TrialPeriodDays: req.TrialPeriodDays,
		MaxUsers:        req.MaxUsers,
		Public:          req.Public,
		Active:          true,
		AllowCustomPath: req.AllowCustomPath,
		AllowHostname:   req.AllowHostname,
		AllowSubdomain:  req.AllowSubdomain,
		PausedPlanID:    pausedPlanID,
		Statement:       strings.TrimSpace(req.Statement),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindPlanCreate, plan.ID); err != nil {
		s.log.Error("enqueue plan create sync failed", zap.String("plan_id", plan.ID.String()), zap.Error(err))
		return nil, err
	}

	return plan, nil
}

func (s *Service) Get(ctx context.Context, id string) (*plandomain.Plan, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, plandomain.ErrInvalidPlan
	}
	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, filter plandomain.ListFilter) ([]plandomain.Plan, error) {
	return s.repo.List(ctx, s.db, filter)
}

// monetary fields become immutable once the plan exists on the gateway.
func validateImmutable(plan *plandomain.Plan, req plandomain.UpdateRequest) error {
	if !plan.Billed() {
		return nil
	}

	verr := &validation.Errors{}
	if req.AmountCents != nil && *req.AmountCents != plan.AmountCents {
		verr.Add("amount_cents", "immutable", "amount cannot change after gateway sync")
	}
	if req.Currency != nil && strings.ToUpper(strings.TrimSpace(*req.Currency)) != plan.Currency {
		verr.Add("currency", "immutable", "currency cannot change after gateway sync")
	}
	if req.Interval != nil && *req.Interval != plan.Interval {
		verr.Add("interval", "immutable", "interval cannot change after gateway sync")
	}
	if req.IntervalCount != nil && *req.IntervalCount != plan.IntervalCount {
		verr.Add("interval_count", "immutable", "interval count cannot change after gateway sync")
	}
	if req.TrialPeriodDays != nil && *req.TrialPeriodDays != plan.TrialPeriodDays {
		verr.Add("trial_period_days", "immutable", "trial period cannot change after gateway sync")
	}
	return verr.OrNil()
}

func (s *Service) Update(ctx context.Context, id string, req plandomain.UpdateRequest) (*plandomain.Plan, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, plandomain.ErrInvalidPlan
	}

	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	if err := validateImmutable(plan, req); err != nil {
		return nil, err
	}

	mutableChanged := false
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" && strings.TrimSpace(*req.Name) != plan.Name {
		plan.Name = strings.TrimSpace(*req.Name)
		mutableChanged = true
	}
	if req.Statement != nil && strings.TrimSpace(*req.Statement) != plan.Statement {
		plan.Statement = strings.TrimSpace(*req.Statement)
		mutableChanged = true
	}
	if !plan.Billed() {
		if req.AmountCents != nil {
			plan.AmountCents = *req.AmountCents
		}
		if req.Currency != nil {
			plan.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
		}
		if req.Interval != nil {
			if *req.Interval != plandomain.IntervalMonth && *req.Interval != plandomain.IntervalYear {
				return nil, plandomain.ErrInvalidInterval
			}
			plan.Interval = *req.Interval
		}
		if req.IntervalCount != nil && *req.IntervalCount > 0 {
			plan.IntervalCount = *req.IntervalCount
		}
		if req.TrialPeriodDays != nil && *req.TrialPeriodDays >= 0 {
			plan.TrialPeriodDays = *req.TrialPeriodDays
		}
	}
	if req.MaxUsers != nil {
		plan.MaxUsers = *req.MaxUsers
	}
	if req.Public != nil {
		plan.Public = *req.Public
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}
	if req.AllowCustomPath != nil {
		plan.AllowCustomPath = *req.AllowCustomPath
	}
	if req.AllowHostname != nil {
		plan.AllowHostname = *req.AllowHostname
	}
	if req.AllowSubdomain != nil {
		plan.AllowSubdomain = *req.AllowSubdomain
	}
	if req.PausedPlanID != nil {
		trimmed := strings.TrimSpace(*req.PausedPlanID)
		if trimmed == "" {
			plan.PausedPlanID = nil
		} else {
			fallbackID, err := snowflake.ParseString(trimmed)
			if err != nil {
				return nil, plandomain.ErrInvalidPausedPlan
			}
			if fallbackID == plan.ID {
				return nil, plandomain.ErrInvalidPausedPlan
			}
			fallback, err := s.repo.FindByID(ctx, s.db, fallbackID)
			if err != nil {
				return nil, err
			}
			if fallback == nil {
				return nil, plandomain.ErrInvalidPausedPlan
			}
			plan.PausedPlanID = &fallbackID
		}
	}

	plan.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, plan); err != nil {
		return nil, err
	}

	// Only mutable fields are ever pushed to the gateway.
	if mutableChanged && plan.Billed() {
		if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindPlanUpdate, plan.ID); err != nil {
			s.log.Error("enqueue plan update sync failed", zap.String("plan_id", plan.ID.String()), zap.Error(err))
			return nil, err
		}
	}

	return plan, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return plandomain.ErrInvalidPlan
	}

	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return err
	}
	if plan == nil {
		return plandomain.ErrPlanNotFound
	}

	var accounts int64
	if err := s.db.WithContext(ctx).Table("accounts").
		Where("plan_id = ? OR paused_plan_id = ?", planID, planID).
		Count(&accounts).Error; err != nil {
		return err
	}
	if accounts > 0 {
		return plandomain.ErrPlanInUse
	}

	if err := s.repo.Delete(ctx, s.db, planID); err != nil {
		return err
	}

	if plan.Billed() {
		if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindPlanDelete, plan.ID); err != nil {
			s.log.Error("enqueue plan delete sync failed", zap.String("plan_id", plan.ID.String()), zap.Error(err))
			return err
		}
	}

	return nil
}
