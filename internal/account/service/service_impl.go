package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	"github.com/saasykit/atlas/internal/clock"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"github.com/saasykit/atlas/internal/validation"
	"github.com/saasykit/atlas/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo       accountdomain.Repository
	planRepo   plandomain.Repository
	policy     cancellationdomain.Service
	dispatcher billingsyncdomain.Dispatcher
	events     appeventdomain.Recorder
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       accountdomain.Repository
	PlanRepo   plandomain.Repository
	Policy     cancellationdomain.Service
	Dispatcher billingsyncdomain.Dispatcher
	Events     appeventdomain.Recorder
}

func NewService(p Params) accountdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:       p.Repo,
		planRepo:   p.PlanRepo,
		policy:     p.Policy,
		dispatcher: p.Dispatcher,
		events:     p.Events,
	}
}

func (s *Service) Create(ctx context.Context, req accountdomain.CreateRequest) (*accountdomain.Account, error) {
	verr := &validation.Errors{}
	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		verr.Add("company_name", "required", "company name is required")
	}
	contactEmail := strings.ToLower(strings.TrimSpace(req.ContactEmail))
	if contactEmail == "" || !strings.Contains(contactEmail, "@") {
		verr.Add("contact_email", "invalid", "a valid contact email is required")
	}
	if strings.TrimSpace(req.PlanID) == "" {
		verr.Add("plan_id", "required", "plan is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	planID, err := snowflake.ParseString(strings.TrimSpace(req.PlanID))
	if err != nil {
		return nil, plandomain.ErrInvalidPlan
	}
	plan, err := s.planRepo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	now := s.clock.Now()
	account := &accountdomain.Account{
		ID:           s.genID.Generate(),
		CompanyName:  companyName,
		ContactEmail: contactEmail,
		AddressLine1: strings.TrimSpace(req.AddressLine1),
		AddressLine2: strings.TrimSpace(req.AddressLine2),
		City:         strings.TrimSpace(req.City),
		Region:       strings.TrimSpace(req.Region),
		PostalCode:   strings.TrimSpace(req.PostalCode),
		CountryCode:  strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		Active:       true,
		PlanID:       plan.ID,
		CardToken:    strings.TrimSpace(req.CardToken),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	applyAddressing(account, plan, req.CustomPath, req.Hostname, req.Subdomain)

	if req.Paused {
		if plan.PausedPlanID == nil {
			return nil, accountdomain.ErrNoPausedPlan
		}
		pausedID := *plan.PausedPlanID
		account.PausedPlanID = &pausedID
	}

	if err := s.repo.Insert(ctx, s.db, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, addressingTakenError(err)
		}
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID); err != nil {
		return nil, err
	}

	s.events.Record(ctx, appeventdomain.LevelSuccess,
		fmt.Sprintf("account %s created on plan %s", account.CompanyName, plan.Name),
		appeventdomain.WithAccount(account.ID),
	)
	return account, nil
}

func (s *Service) Get(ctx context.Context, id string) (*accountdomain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) List(ctx context.Context) ([]accountdomain.Account, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, id string, req accountdomain.UpdateRequest) (*accountdomain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CompanyName != nil && strings.TrimSpace(*req.CompanyName) != "" {
		account.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
	if req.ContactEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*req.ContactEmail))
		if email == "" || !strings.Contains(email, "@") {
			verr := &validation.Errors{}
			verr.Add("contact_email", "invalid", "a valid contact email is required")
			return nil, verr
		}
		account.ContactEmail = email
	}
	if req.AddressLine1 != nil {
		account.AddressLine1 = strings.TrimSpace(*req.AddressLine1)
	}
	if req.AddressLine2 != nil {
		account.AddressLine2 = strings.TrimSpace(*req.AddressLine2)
	}
	if req.City != nil {
		account.City = strings.TrimSpace(*req.City)
	}
	if req.Region != nil {
		account.Region = strings.TrimSpace(*req.Region)
	}
	if req.PostalCode != nil {
		account.PostalCode = strings.TrimSpace(*req.PostalCode)
	}
	if req.CountryCode != nil {
		account.CountryCode = strings.ToUpper(strings.TrimSpace(*req.CountryCode))
	}
	if req.PlanID != nil {
		planID, err := snowflake.ParseString(strings.TrimSpace(*req.PlanID))
		if err != nil {
			return nil, plandomain.ErrInvalidPlan
		}
		account.PlanID = planID
	}
	if req.CardToken != nil && strings.TrimSpace(*req.CardToken) != "" {
		account.CardToken = strings.TrimSpace(*req.CardToken)
	}

	plan, err := s.planRepo.FindByID(ctx, s.db, account.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, plandomain.ErrPlanNotFound
	}

	customPath := deref(account.CustomPath)
	hostname := deref(account.Hostname)
	subdomain := deref(account.Subdomain)
	if req.CustomPath != nil {
		customPath = *req.CustomPath
	}
	if req.Hostname != nil {
		hostname = *req.Hostname
	}
	if req.Subdomain != nil {
		subdomain = *req.Subdomain
	}
	applyAddressing(account, plan, customPath, hostname, subdomain)

	account.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, addressingTakenError(err)
		}
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindAccountUpdate, account.ID); err != nil {
		return nil, err
	}

	s.events.Record(ctx, appeventdomain.LevelInfo,
		fmt.Sprintf("account %s updated", account.CompanyName),
		appeventdomain.WithAccount(account.ID),
	)
	return account, nil
}

func (s *Service) Cancel(ctx context.Context, id string, req accountdomain.CancelRequest) (*accountdomain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	resolved, err := s.policy.Validate(ctx, cancellationdomain.CancelInput{
		CategoryID: req.CategoryID,
		ReasonID:   req.ReasonID,
		Message:    req.Message,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account.Active = false
	account.CancelledAt = &now
	account.CancellationCategoryID = &resolved.CategoryID
	account.CancellationReasonID = resolved.ReasonID
	account.CancellationMessage = resolved.Message
	account.UpdatedAt = now

	if err := s.repo.ApplyCancellation(ctx, s.db, account); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindAccountCancel, account.ID); err != nil {
		return nil, err
	}

	s.events.Record(ctx, appeventdomain.LevelWarning,
		fmt.Sprintf("account %s cancelled", account.CompanyName),
		appeventdomain.WithAccount(account.ID),
	)
	return account, nil
}

func (s *Service) Pause(ctx context.Context, id string) (*accountdomain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	plan, err := s.planRepo.FindByID(ctx, s.db, account.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil || plan.PausedPlanID == nil {
		return nil, accountdomain.ErrNoPausedPlan
	}

	pausedID := *plan.PausedPlanID
	account.PausedPlanID = &pausedID
	account.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, account); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindAccountUpdate, account.ID); err != nil {
		return nil, err
	}

	s.events.Record(ctx, appeventdomain.LevelInfo,
		fmt.Sprintf("account %s paused", account.CompanyName),
		appeventdomain.WithAccount(account.ID),
	)
	return account, nil
}

func (s *Service) Unpause(ctx context.Context, id string) (*accountdomain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	account.PausedPlanID = nil
	account.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, account); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindAccountUpdate, account.ID); err != nil {
		return nil, err
	}

	s.events.Record(ctx, appeventdomain.LevelInfo,
		fmt.Sprintf("account %s unpaused", account.CompanyName),
		appeventdomain.WithAccount(account.ID),
	)
	return account, nil
}

// Restore re-activates and clears cancellation fields. PausedPlanID is
// left untouched: un-pausing is a separate explicit action.
func (s *Service) Restore(ctx context.Context, id string) (*accountdomain.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	account.Active = true
	account.CancelledAt = nil
	account.CancellationCategoryID = nil
	account.CancellationReasonID = nil
	account.CancellationMessage = ""
	account.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, account); err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, billingsyncdomain.KindAccountRestore, account.ID); err != nil {
		return nil, err
	}

	s.events.Record(ctx, appeventdomain.LevelSuccess,
		fmt.Sprintf("account %s restored", account.CompanyName),
		appeventdomain.WithAccount(account.ID),
	)
	return account, nil
}

func (s *Service) Destroy(ctx context.Context, id string) error {
	account, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, s.db, account.ID); err != nil {
		return err
	}

	s.log.Info("account destroyed", zap.String("account_id", account.ID.String()))
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*accountdomain.Account, error) {
	accountID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, accountdomain.ErrInvalidAccount
	}
	account, err := s.repo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}
	return account, nil
}

// applyAddressing normalizes addressing fields and nulls out the ones
// the plan disallows.
func applyAddressing(account *accountdomain.Account, plan *plandomain.Plan, customPath, hostname, subdomain string) {
	account.CustomPath = nil
	account.Hostname = nil
	account.Subdomain = nil

	if plan.AllowCustomPath {
		if value := slug.Make(strings.TrimSpace(customPath)); value != "" {
			account.CustomPath = &value
		}
	}
	if plan.AllowHostname {
		if value := strings.ToLower(strings.TrimSpace(hostname)); value != "" {
			account.Hostname = &value
		}
	}
	if plan.AllowSubdomain {
		if value := slug.Make(strings.TrimSpace(subdomain)); value != "" {
			account.Subdomain = &value
		}
	}
}

func addressingTakenError(err error) error {
	verr := &validation.Errors{}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "custom_path"):
		verr.Add("custom_path", "taken", "custom path is already taken")
	case strings.Contains(msg, "hostname"):
		verr.Add("hostname", "taken", "hostname is already taken")
	case strings.Contains(msg, "subdomain"):
		verr.Add("subdomain", "taken", "subdomain is already taken")
	default:
		verr.Add("base", "conflict", "record conflicts with an existing account")
	}
	return verr
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
