package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	"github.com/saasykit/atlas/internal/clock"
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
	repo  cancellationdomain.Repository
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  cancellationdomain.Repository
}

func NewService(p Params) cancellationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("cancellation.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Validate implements the cancellation policy. Field errors never stop
// at the first failure so the caller can re-render every field at once.
func (s *Service) Validate(ctx context.Context, input cancellationdomain.CancelInput) (*cancellationdomain.Resolved, error) {
	verr := &validation.Errors{}

	rawCategory := strings.TrimSpace(input.CategoryID)
	if rawCategory == "" {
		verr.Add("category", "required", "cancellation category is required")
		return nil, verr
	}

	categoryID, err := snowflake.ParseString(rawCategory)
	if err != nil {
		return nil, cancellationdomain.ErrInvalidCategory
	}
	category, err := s.repo.FindCategoryByID(ctx, s.db, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, cancellationdomain.ErrCategoryNotFound
	}

	activeReasons, err := s.repo.CountActiveReasons(ctx, s.db, categoryID)
	if err != nil {
		return nil, err
	}

	var reason *cancellationdomain.Reason
	rawReason := strings.TrimSpace(input.ReasonID)
	if rawReason != "" {
		reasonID, err := snowflake.ParseString(rawReason)
		if err != nil {
			return nil, cancellationdomain.ErrInvalidReason
		}
		reason, err = s.repo.FindReasonByID(ctx, s.db, reasonID)
		if err != nil {
			return nil, err
		}
		if reason == nil {
			return nil, cancellationdomain.ErrReasonNotFound
		}
		if reason.CategoryID != categoryID {
			return nil, cancellationdomain.ErrInvalidReason
		}
	} else if activeReasons > 0 {
		verr.Add("reason", "required", "cancellation reason is required")
	}

	message := strings.TrimSpace(input.Message)
	requireMessage := category.RequireMessage || (reason != nil && reason.RequireMessage)
	if requireMessage && message == "" {
		verr.Add("message", "required", "cancellation message is required")
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	resolved := &cancellationdomain.Resolved{
		CategoryID: categoryID,
		Message:    message,
	}
	if reason != nil {
		id := reason.ID
		resolved.ReasonID = &id
	}
	return resolved, nil
}

func (s *Service) CreateCategory(ctx context.Context, req cancellationdomain.CategoryRequest) (*cancellationdomain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, cancellationdomain.ErrInvalidCategory
	}

	now := s.clock.Now()
	category := &cancellationdomain.Category{
		ID:             s.genID.Generate(),
		Name:           name,
		Active:         true,
		AllowMessage:   req.AllowMessage || req.RequireMessage,
		RequireMessage: req.RequireMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Active != nil {
		category.Active = *req.Active
	}

	if err := s.repo.InsertCategory(ctx, s.db, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req cancellationdomain.CategoryRequest) (*cancellationdomain.Category, error) {
	categoryID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, cancellationdomain.ErrInvalidCategory
	}
	category, err := s.repo.FindCategoryByID(ctx, s.db, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, cancellationdomain.ErrCategoryNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		category.Name = name
	}
	if req.Active != nil {
		category.Active = *req.Active
	}
	category.RequireMessage = req.RequireMessage
	category.AllowMessage = req.AllowMessage || req.RequireMessage
	category.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateCategory(ctx, s.db, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]cancellationdomain.Category, error) {
	return s.repo.ListCategories(ctx, s.db, activeOnly)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	categoryID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return cancellationdomain.ErrInvalidCategory
	}
	return s.repo.DeleteCategory(ctx, s.db, categoryID)
}

func (s *Service) CreateReason(ctx context.Context, categoryID string, req cancellationdomain.ReasonRequest) (*cancellationdomain.Reason, error) {
	parsedCategoryID, err := snowflake.ParseString(strings.TrimSpace(categoryID))
	if err != nil {
		return nil, cancellationdomain.ErrInvalidCategory
	}
	category, err := s.repo.FindCategoryByID(ctx, s.db, parsedCategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, cancellationdomain.ErrCategoryNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, cancellationdomain.ErrInvalidReason
	}

	now := s.clock.Now()
	reason := &cancellationdomain.Reason{
		ID:             s.genID.Generate(),
		CategoryID:     parsedCategoryID,
		Name:           name,
		Active:         true,
		AllowMessage:   req.AllowMessage || req.RequireMessage,
		RequireMessage: req.RequireMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Active != nil {
		reason.Active = *req.Active
	}

	if err := s.repo.InsertReason(ctx, s.db, reason); err != nil {
		return nil, err
	}
	return reason, nil
}

func (s *Service) UpdateReason(ctx context.Context, id string, req cancellationdomain.ReasonRequest) (*cancellationdomain.Reason, error) {
	reasonID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, cancellationdomain.ErrInvalidReason
	}
	reason, err := s.repo.FindReasonByID(ctx, s.db, reasonID)
	if err != nil {
		return nil, err
	}
	if reason == nil {
		return nil, cancellationdomain.ErrReasonNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		reason.Name = name
	}
	if req.Active != nil {
		reason.Active = *req.Active
	}
	reason.RequireMessage = req.RequireMessage
	reason.AllowMessage = req.AllowMessage || req.RequireMessage
	reason.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateReason(ctx, s.db, reason); err != nil {
		return nil, err
	}
	return reason, nil
}

func (s *Service) ListReasons(ctx context.Context, categoryID string, activeOnly bool) ([]cancellationdomain.Reason, error) {
	parsedCategoryID, err := snowflake.ParseString(strings.TrimSpace(categoryID))
	if err != nil {
		return nil, cancellationdomain.ErrInvalidCategory
	}
	return s.repo.ListReasons(ctx, s.db, parsedCategoryID, activeOnly)
}

func (s *Service) DeleteReason(ctx context.Context, id string) error {
	reasonID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return cancellationdomain.ErrInvalidReason
	}
	return s.repo.DeleteReason(ctx, s.db, reasonID)
}
