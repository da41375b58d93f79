package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/gateway"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
)

// gatewayPlanID derives the remote plan id from the local one. The
// mapping is deterministic so delete jobs can address the remote plan
// after the local row is gone.
func gatewayPlanID(id snowflake.ID) string {
	return fmt.Sprintf("plan_%s", id)
}

type handler func(ctx context.Context, job billingsyncdomain.SyncJob) error

func (s *Service) handlers() map[billingsyncdomain.Kind]handler {
	return map[billingsyncdomain.Kind]handler{
		billingsyncdomain.KindPlanCreate:     s.handlePlanCreate,
		billingsyncdomain.KindPlanUpdate:     s.handlePlanUpdate,
		billingsyncdomain.KindPlanDelete:     s.handlePlanDelete,
		billingsyncdomain.KindAccountCreate:  s.handleAccountCreate,
		billingsyncdomain.KindAccountUpdate:  s.handleAccountUpdate,
		billingsyncdomain.KindAccountRestore: s.handleAccountRestore,
		billingsyncdomain.KindAccountCancel:  s.handleAccountCancel,
	}
}

func (s *Service) handlePlanCreate(ctx context.Context, job billingsyncdomain.SyncJob) error {
	plan, err := s.planRepo.FindByID(ctx, s.db, job.TargetID)
	if err != nil {
		return err
	}
	if plan == nil {
		// Deleted locally before the job ran; nothing to push.
		return nil
	}

	remoteID := gatewayPlanID(plan.ID)
	if _, err := s.gateway.CreatePlan(ctx, planPayload(plan, remoteID)); err != nil {
		return err
	}
	// Local write-back only after the remote call succeeded.
	return s.planRepo.SetGatewayPlanID(ctx, s.db, plan.ID, remoteID)
}

func (s *Service) handlePlanUpdate(ctx context.Context, job billingsyncdomain.SyncJob) error {
	plan, err := s.planRepo.FindByID(ctx, s.db, job.TargetID)
	if err != nil {
		return err
	}
	if plan == nil {
		return nil
	}

	remoteID := gatewayPlanID(plan.ID)
	_, err = s.gateway.UpdatePlan(ctx, planUpdatePayload(plan, remoteID))
	if errors.Is(err, gateway.ErrNotFound) {
		if _, err := s.gateway.CreatePlan(ctx, planPayload(plan, remoteID)); err != nil {
			return err
		}
		err = nil
	}
	if err != nil {
		return err
	}
	if plan.GatewayPlanID == "" {
		return s.planRepo.SetGatewayPlanID(ctx, s.db, plan.ID, remoteID)
	}
	return nil
}

func (s *Service) handlePlanDelete(ctx context.Context, job billingsyncdomain.SyncJob) error {
	err := s.gateway.DeletePlan(ctx, gatewayPlanID(job.TargetID))
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) handleAccountCreate(ctx context.Context, job billingsyncdomain.SyncJob) error {
	account, err := s.accountRepo.FindByID(ctx, s.db, job.TargetID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}
	return s.pushAccount(ctx, account)
}

func (s *Service) handleAccountUpdate(ctx context.Context, job billingsyncdomain.SyncJob) error {
	account, err := s.accountRepo.FindByID(ctx, s.db, job.TargetID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}
	if account.GatewayCustomerID == "" {
		// Earlier create never reached the gateway.
		return s.pushAccount(ctx, account)
	}

	if _, err := s.gateway.UpdateCustomer(ctx, customerPayload(account)); err != nil {
		return err
	}
	if account.GatewaySubscriptionID != "" {
		sub, err := s.gateway.UpdateSubscription(ctx, gateway.SubscriptionInput{
			ID:         account.GatewaySubscriptionID,
			CustomerID: account.GatewayCustomerID,
			PlanID:     gatewayPlanID(account.EffectivePlanID()),
		})
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			if err := s.pushSubscription(ctx, account); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			// The gateway reports the renewed period end on update.
			if err := s.accountRepo.SetGatewayRefs(ctx, s.db, accountdomain.GatewayRefsUpdate{
				AccountID: account.ID,
				ExpiresAt: sub.ExpiresAt,
			}); err != nil {
				return err
			}
		}
	}
	return s.scrubCardToken(ctx, account)
}

func (s *Service) handleAccountRestore(ctx context.Context, job billingsyncdomain.SyncJob) error {
	account, err := s.accountRepo.FindByID(ctx, s.db, job.TargetID)
	if err != nil {
		return err
	}
	if account == nil || !account.Active {
		// Cancelled again before the restore ran.
		return nil
	}
	if account.GatewayCustomerID == "" {
		return s.pushAccount(ctx, account)
	}
	return s.pushSubscription(ctx, account)
}

func (s *Service) handleAccountCancel(ctx context.Context, job billingsyncdomain.SyncJob) error {
	account, err := s.accountRepo.FindByID(ctx, s.db, job.TargetID)
	if err != nil {
		return err
	}
	if account == nil || account.GatewaySubscriptionID == "" {
		return nil
	}

	sub, err := s.gateway.DeleteSubscription(ctx, account.GatewaySubscriptionID)
	if err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return err
	}
	empty := ""
	update := accountdomain.GatewayRefsUpdate{
		AccountID:      account.ID,
		SubscriptionID: &empty,
	}
	// Access ends at the gateway-reported cancellation time, not the
	// period end recorded when the subscription was created.
	if sub != nil && sub.CancelledAt != nil {
		update.ExpiresAt = sub.CancelledAt
	}
	return s.accountRepo.SetGatewayRefs(ctx, s.db, update)
}

// pushAccount creates the customer and subscription from scratch and
// writes the remote ids back locally.
func (s *Service) pushAccount(ctx context.Context, account *accountdomain.Account) error {
	customer, err := s.gateway.CreateCustomer(ctx, customerPayload(account))
	if err != nil {
		return err
	}

	sub, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionInput{
		CustomerID: customer.ID,
		PlanID:     gatewayPlanID(account.EffectivePlanID()),
	})
	if err != nil {
		return err
	}

	sentinel := accountdomain.CardTokenSentinel
	update := accountdomain.GatewayRefsUpdate{
		AccountID:      account.ID,
		CustomerID:     &customer.ID,
		SubscriptionID: &sub.ID,
		ExpiresAt:      sub.ExpiresAt,
	}
	if account.CardToken != "" && account.CardToken != accountdomain.CardTokenSentinel {
		update.CardToken = &sentinel
	}
	return s.accountRepo.SetGatewayRefs(ctx, s.db, update)
}

// pushSubscription (re)creates the subscription for an account whose
// customer already exists remotely.
func (s *Service) pushSubscription(ctx context.Context, account *accountdomain.Account) error {
	sub, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionInput{
		CustomerID: account.GatewayCustomerID,
		PlanID:     gatewayPlanID(account.EffectivePlanID()),
	})
	if err != nil {
		return err
	}
	return s.accountRepo.SetGatewayRefs(ctx, s.db, accountdomain.GatewayRefsUpdate{
		AccountID:      account.ID,
		SubscriptionID: &sub.ID,
		ExpiresAt:      sub.ExpiresAt,
	})
}

// scrubCardToken replaces a freshly supplied token with the sentinel
// once the gateway has seen it.
func (s *Service) scrubCardToken(ctx context.Context, account *accountdomain.Account) error {
	if account.CardToken == "" || account.CardToken == accountdomain.CardTokenSentinel {
		return nil
	}
	sentinel := accountdomain.CardTokenSentinel
	return s.accountRepo.SetGatewayRefs(ctx, s.db, accountdomain.GatewayRefsUpdate{
		AccountID: account.ID,
		CardToken: &sentinel,
	})
}

func customerPayload(account *accountdomain.Account) gateway.CustomerInput {
	input := gateway.CustomerInput{
		ID:    account.GatewayCustomerID,
		Email: account.ContactEmail,
		Name:  account.CompanyName,
	}
	if account.CardToken != "" && account.CardToken != accountdomain.CardTokenSentinel {
		input.CardToken = account.CardToken
	}
	return input
}

func planPayload(plan *plandomain.Plan, remoteID string) gateway.Plan {
	return gateway.Plan{
		ID:            remoteID,
		Name:          plan.Name,
		AmountCents:   plan.AmountCents,
		Currency:      plan.Currency,
		Interval:      string(plan.Interval),
		IntervalCount: plan.IntervalCount,
		TrialDays:     plan.TrialPeriodDays,
		Statement:     plan.Statement,
	}
}

// planUpdatePayload carries only the mutable display fields. Billed
// terms are immutable once a plan exists remotely and are never pushed
// on update.
func planUpdatePayload(plan *plandomain.Plan, remoteID string) gateway.Plan {
	return gateway.Plan{
		ID:        remoteID,
		Name:      plan.Name,
		Statement: plan.Statement,
	}
}
