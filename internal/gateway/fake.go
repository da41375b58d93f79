package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake is an in-memory gateway used by the "fake" provider and by
// tests. It assigns deterministic remote ids, models subscription
// period ends off its clock, and records every call.
type Fake struct {
	mu sync.Mutex

	customers     map[string]Customer
	subscriptions map[string]Subscription
	plans         map[string]Plan

	seq   int
	Calls []string

	// FailNext makes the next call fail with the given error.
	FailNext error

	// NowFunc overrides the time source; nil means wall clock.
	NowFunc func() time.Time
}

func NewFake() *Fake {
	return &Fake{
		customers:     map[string]Customer{},
		subscriptions: map[string]Subscription{},
		plans:         map[string]Plan{},
	}
}

func (f *Fake) now() time.Time {
	if f.NowFunc != nil {
		return f.NowFunc()
	}
	return time.Now().UTC()
}

// periodEnd computes the next renewal from the stored plan's interval.
// Unknown plans bill monthly.
func (f *Fake) periodEnd(planID string) time.Time {
	now := f.now()
	plan, ok := f.plans[planID]
	if !ok {
		return now.AddDate(0, 1, 0)
	}
	years := 0
	months := plan.IntervalCount
	if months <= 0 {
		months = 1
	}
	if plan.Interval == "year" {
		years, months = months, 0
	}
	return now.AddDate(years, months, 0)
}

func (f *Fake) fail(call string) error {
	f.Calls = append(f.Calls, call)
	if err := f.FailNext; err != nil {
		f.FailNext = nil
		return err
	}
	return nil
}

func (f *Fake) CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("customer.create"); err != nil {
		return nil, err
	}
	f.seq++
	customer := Customer{
		ID:    fmt.Sprintf("cus_%d", f.seq),
		Email: input.Email,
		Name:  input.Name,
	}
	f.customers[customer.ID] = customer
	return &customer, nil
}

func (f *Fake) UpdateCustomer(ctx context.Context, input CustomerInput) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("customer.update"); err != nil {
		return nil, err
	}
	customer, ok := f.customers[input.ID]
	if !ok {
		return nil, ErrNotFound
	}
	customer.Email = input.Email
	customer.Name = input.Name
	f.customers[input.ID] = customer
	return &customer, nil
}

func (f *Fake) CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("subscription.create"); err != nil {
		return nil, err
	}
	f.seq++
	end := f.periodEnd(input.PlanID)
	sub := Subscription{
		ID:         fmt.Sprintf("sub_%d", f.seq),
		CustomerID: input.CustomerID,
		PlanID:     input.PlanID,
		ExpiresAt:  &end,
	}
	f.subscriptions[sub.ID] = sub
	return &sub, nil
}

func (f *Fake) UpdateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("subscription.update"); err != nil {
		return nil, err
	}
	sub, ok := f.subscriptions[input.ID]
	if !ok {
		return nil, ErrNotFound
	}
	sub.PlanID = input.PlanID
	end := f.periodEnd(input.PlanID)
	sub.ExpiresAt = &end
	f.subscriptions[input.ID] = sub
	return &sub, nil
}

func (f *Fake) DeleteSubscription(ctx context.Context, id string) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("subscription.delete"); err != nil {
		return nil, err
	}
	sub, ok := f.subscriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := f.now()
	sub.CancelledAt = &now
	delete(f.subscriptions, id)
	return &sub, nil
}

func (f *Fake) CreatePlan(ctx context.Context, input Plan) (*Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("plan.create"); err != nil {
		return nil, err
	}
	plan := input
	f.plans[plan.ID] = plan
	return &plan, nil
}

func (f *Fake) UpdatePlan(ctx context.Context, input Plan) (*Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("plan.update"); err != nil {
		return nil, err
	}
	plan, ok := f.plans[input.ID]
	if !ok {
		return nil, ErrNotFound
	}
	// Billed terms are immutable remotely; only the display fields move.
	plan.Name = input.Name
	plan.Statement = input.Statement
	f.plans[input.ID] = plan
	return &plan, nil
}

func (f *Fake) DeletePlan(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("plan.delete"); err != nil {
		return err
	}
	delete(f.plans, id)
	return nil
}

// Plan returns the stored plan, for assertions.
func (f *Fake) Plan(id string) (Plan, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, ok := f.plans[id]
	return plan, ok
}

// Subscription returns the stored subscription, for assertions.
func (f *Fake) Subscription(id string) (Subscription, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[id]
	return sub, ok
}

var _ Gateway = (*Fake)(nil)
