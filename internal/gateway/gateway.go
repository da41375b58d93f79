// Package gateway defines the billing provider port. Sync job handlers
// are the only callers; lifecycle services never talk to the gateway
// directly.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Customer mirrors the provider-side customer record.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// Subscription mirrors the provider-side subscription record.
// ExpiresAt is the current period end; CancelledAt is set on the
// record returned by DeleteSubscription.
type Subscription struct {
	ID          string
	CustomerID  string
	PlanID      string
	ExpiresAt   *time.Time
	CancelledAt *time.Time
}

// Plan mirrors the provider-side plan record.
type Plan struct {
	ID            string
	Name          string
	AmountCents   int64
	Currency      string
	Interval      string
	IntervalCount int
	TrialDays     int
	Statement     string
}

// CustomerInput carries the fields pushed on create and update.
type CustomerInput struct {
	ID        string
	Email     string
	Name      string
	CardToken string
}

// SubscriptionInput carries the fields pushed on create and update.
type SubscriptionInput struct {
	ID         string
	CustomerID string
	PlanID     string
}

// Gateway is the provider port. Every call is a single remote
// round-trip; retry policy lives in the sync worker, not here.
type Gateway interface {
	CreateCustomer(ctx context.Context, input CustomerInput) (*Customer, error)
	UpdateCustomer(ctx context.Context, input CustomerInput) (*Customer, error)

	CreateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error)
	UpdateSubscription(ctx context.Context, input SubscriptionInput) (*Subscription, error)
	// DeleteSubscription cancels remotely and returns the cancelled
	// record so callers can persist the cancellation time.
	DeleteSubscription(ctx context.Context, id string) (*Subscription, error)

	CreatePlan(ctx context.Context, input Plan) (*Plan, error)
	UpdatePlan(ctx context.Context, input Plan) (*Plan, error)
	DeletePlan(ctx context.Context, id string) error
}

// TransientError marks a failure worth retrying: timeouts, 5xx, rate
// limits. Anything else is terminal and fails the job after one pass.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient gateway error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so the sync worker schedules a retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrNotFound is returned by delete and update calls when the remote
// record is already gone. Handlers treat it as success.
var ErrNotFound = errors.New("gateway_record_not_found")
