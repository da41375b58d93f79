package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	"github.com/saasykit/atlas/internal/clock"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
	"github.com/saasykit/atlas/internal/providers/email"
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

	repo        invitationdomain.Repository
	accountRepo accountdomain.Repository
	mailer      email.Provider
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        invitationdomain.Repository
	AccountRepo accountdomain.Repository
	Mailer      email.Provider
}

func NewService(p Params) invitationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invitation.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		mailer:      p.Mailer,
	}
}

func (s *Service) Invite(ctx context.Context, req invitationdomain.InviteRequest) (*invitationdomain.Invitation, error) {
	verr := &validation.Errors{}
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		verr.Add("email", "invalid", "a valid email is required")
	}
	if strings.TrimSpace(req.AccountID) == "" {
		verr.Add("account_id", "required", "account is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	accountID, err := snowflake.ParseString(strings.TrimSpace(req.AccountID))
	if err != nil {
		return nil, accountdomain.ErrInvalidAccount
	}
	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountdomain.ErrAccountNotFound
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "member"
	}

	now := s.clock.Now()
	invitation := &invitationdomain.Invitation{
		ID:        s.genID.Generate(),
		AccountID: account.ID,
		Email:     emailAddr,
		Role:      role,
		Code:      uuid.NewString(),
		Status:    invitationdomain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, invitation); err != nil {
		return nil, err
	}

	go s.sendInviteMail(account.CompanyName, invitation)
	return invitation, nil
}

// sendInviteMail runs detached from the request; a delivery failure is
// logged and the invitation stays pending for a resend.
func (s *Service) sendInviteMail(companyName string, invitation *invitationdomain.Invitation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	subject := fmt.Sprintf("You're invited to join %s", companyName)
	body := fmt.Sprintf(
		"<p>You have been invited to join <b>%s</b> as %s.</p><p>Your invitation code: <code>%s</code></p>",
		companyName, invitation.Role, invitation.Code,
	)
	if err := s.mailer.Send(ctx, []string{invitation.Email}, subject, body); err != nil {
		s.log.Warn("invitation mail failed",
			zap.String("invitation_id", invitation.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) Accept(ctx context.Context, req invitationdomain.AcceptRequest) (*invitationdomain.Invitation, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, invitationdomain.ErrInvalidInvitation
	}

	invitation, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, invitationdomain.ErrInvitationNotFound
	}
	if invitation.Status == invitationdomain.StatusAccepted {
		return nil, invitationdomain.ErrAlreadyAccepted
	}

	invitation.Status = invitationdomain.StatusAccepted
	invitation.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, invitation); err != nil {
		return nil, err
	}
	return invitation, nil
}

func (s *Service) List(ctx context.Context, accountID string) ([]invitationdomain.Invitation, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(accountID))
	if err != nil {
		return nil, accountdomain.ErrInvalidAccount
	}
	return s.repo.ListByAccount(ctx, s.db, id)
}
