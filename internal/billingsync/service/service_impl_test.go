package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	accountrepository "github.com/saasykit/atlas/internal/account/repository"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	"github.com/saasykit/atlas/internal/billingsync/repository"
	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/config"
	"github.com/saasykit/atlas/internal/gateway"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	planrepository "github.com/saasykit/atlas/internal/plan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingEvents struct {
	events []appeventdomain.AppEvent
}

func (r *recordingEvents) Record(ctx context.Context, level appeventdomain.Level, message string, opts ...appeventdomain.Option) {
	event := appeventdomain.AppEvent{Level: level, Message: message}
	for _, opt := range opts {
		opt(&event)
	}
	r.events = append(r.events, event)
}

func (r *recordingEvents) List(ctx context.Context, req appeventdomain.ListRequest) ([]appeventdomain.AppEvent, error) {
	return nil, nil
}

type syncFixture struct {
	svc    billingsyncdomain.Service
	db     *gorm.DB
	repo   billingsyncdomain.Repository
	fake   *gateway.Fake
	events *recordingEvents
	clk    *clock.FakeClock
	node   *snowflake.Node
}

func newSyncFixture(t *testing.T, cfg config.Config) *syncFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&accountdomain.Account{},
		&billingsyncdomain.SyncJob{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	fake := gateway.NewFake()
	fake.NowFunc = clk.Now
	events := &recordingEvents{}
	repo := repository.Provide()

	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Config:      cfg,
		Repo:        repo,
		PlanRepo:    planrepository.Provide(),
		AccountRepo: accountrepository.Provide(),
		Gateway:     fake,
		Events:      events,
	})
	return &syncFixture{svc: svc, db: db, repo: repo, fake: fake, events: events, clk: clk, node: node}
}

func (f *syncFixture) seedPlan(t *testing.T, name string) *plandomain.Plan {
	t.Helper()
	plan := &plandomain.Plan{
		ID:            f.node.Generate(),
		Name:          name,
		Code:          "plan-" + f.node.Generate().String(),
		AmountCents:   2900,
		Currency:      "USD",
		Interval:      plandomain.IntervalMonth,
		IntervalCount: 1,
		Active:        true,
		Statement:     "ATLAS " + name,
		CreatedAt:     f.clk.Now(),
		UpdatedAt:     f.clk.Now(),
	}
	require.NoError(t, f.db.Create(plan).Error)
	return plan
}

func (f *syncFixture) seedAccount(t *testing.T, plan *plandomain.Plan, mutate func(*accountdomain.Account)) *accountdomain.Account {
	t.Helper()
	account := &accountdomain.Account{
		ID:           f.node.Generate(),
		CompanyName:  "Acme",
		ContactEmail: "ops@acme.test",
		Active:       true,
		PlanID:       plan.ID,
		CreatedAt:    f.clk.Now(),
		UpdatedAt:    f.clk.Now(),
	}
	if mutate != nil {
		mutate(account)
	}
	require.NoError(t, f.db.Create(account).Error)
	return account
}

func (f *syncFixture) onlyJob(t *testing.T) billingsyncdomain.SyncJob {
	t.Helper()
	var jobs []billingsyncdomain.SyncJob
	require.NoError(t, f.db.Find(&jobs).Error)
	require.Len(t, jobs, 1)
	return jobs[0]
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	f := newSyncFixture(t, config.Config{})

	err := f.svc.Enqueue(context.Background(), "plan.retire", f.node.Generate())
	assert.ErrorIs(t, err, billingsyncdomain.ErrInvalidKind)

	err = f.svc.Enqueue(context.Background(), billingsyncdomain.KindPlanCreate, 0)
	assert.ErrorIs(t, err, billingsyncdomain.ErrInvalidTarget)
}

func TestClaimOrdersByPriorityThenFIFO(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	planA := f.seedPlan(t, "A")
	planB := f.seedPlan(t, "B")
	account := f.seedAccount(t, planA, nil)

	// Enqueued out of priority order on purpose.
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID))
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, planB.ID))
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, planA.ID))

	jobs, err := f.repo.ClaimNext(ctx, f.db, billingsyncdomain.QueueGateway, f.clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, planB.ID, jobs[0].TargetID)
	assert.Equal(t, planA.ID, jobs[1].TargetID)
	assert.Equal(t, account.ID, jobs[2].TargetID)
}

func TestRunPendingExecutesInPriorityOrder(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	account := f.seedAccount(t, plan, nil)

	// The account job lands first but the plan job must run first so
	// the subscription can reference the remote plan.
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID))
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, plan.ID))

	executed, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, executed)
	assert.Equal(t, []string{"plan.create", "customer.create", "subscription.create"}, f.fake.Calls)
}

func TestAccountCreateWritesBackGatewayRefs(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	account := f.seedAccount(t, plan, func(a *accountdomain.Account) {
		a.CardToken = "tok_raw_4242"
	})
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID))

	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	job := f.onlyJob(t)
	assert.Equal(t, billingsyncdomain.JobStatusSucceeded, job.Status)

	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	assert.Equal(t, "cus_1", stored.GatewayCustomerID)
	assert.Equal(t, "sub_2", stored.GatewaySubscriptionID)
	assert.Equal(t, accountdomain.CardTokenSentinel, stored.CardToken)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, f.clk.Now().AddDate(0, 1, 0), stored.ExpiresAt.UTC())

	sub, ok := f.fake.Subscription("sub_2")
	require.True(t, ok)
	assert.Equal(t, "plan_"+plan.ID.String(), sub.PlanID)
}

func TestTransientFailureSchedulesRetry(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, plan.ID))

	f.fake.FailNext = gateway.Transient(errors.New("gateway timeout"))
	executed, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	job := f.onlyJob(t)
	assert.Equal(t, billingsyncdomain.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Contains(t, job.LastError, "gateway timeout")
	assert.Equal(t, f.clk.Now().Add(30*time.Second), job.RunAfter.UTC())

	// Not due yet, so nothing is claimed.
	executed, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)

	f.clk.Advance(31 * time.Second)
	executed, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	job = f.onlyJob(t)
	assert.Equal(t, billingsyncdomain.JobStatusSucceeded, job.Status)
	_, ok := f.fake.Plan("plan_" + plan.ID.String())
	assert.True(t, ok)
}

func TestTransientFailureExhaustsAttempts(t *testing.T) {
	f := newSyncFixture(t, config.Config{SyncMaxAttempts: 2})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, plan.ID))

	f.fake.FailNext = gateway.Transient(errors.New("gateway timeout"))
	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, billingsyncdomain.JobStatusPending, f.onlyJob(t).Status)

	f.clk.Advance(time.Minute)
	f.fake.FailNext = gateway.Transient(errors.New("gateway timeout"))
	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	job := f.onlyJob(t)
	assert.Equal(t, billingsyncdomain.JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.Attempts)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, appeventdomain.LevelAlert, f.events.events[0].Level)
}

func TestTerminalFailureRecordsAlert(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	account := f.seedAccount(t, plan, nil)
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID))

	f.fake.FailNext = errors.New("card declined")
	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	job := f.onlyJob(t)
	assert.Equal(t, billingsyncdomain.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "card declined", job.LastError)

	// No partial write-back after a failed push.
	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	assert.Empty(t, stored.GatewayCustomerID)

	require.Len(t, f.events.events, 1)
	event := f.events.events[0]
	assert.Equal(t, appeventdomain.LevelAlert, event.Level)
	require.NotNil(t, event.AccountID)
	assert.Equal(t, account.ID, *event.AccountID)
	assert.Equal(t, string(billingsyncdomain.KindAccountCreate), event.Metadata["kind"])
}

func TestJobForDeletedTargetSucceedsAsNoOp(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, f.node.Generate()))

	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, billingsyncdomain.JobStatusSucceeded, f.onlyJob(t).Status)
	assert.Empty(t, f.fake.Calls)
}

func TestAccountUpdateRecreatesMissingSubscription(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	customer, err := f.fake.CreateCustomer(ctx, gateway.CustomerInput{Email: "ops@acme.test", Name: "Acme"})
	require.NoError(t, err)
	account := f.seedAccount(t, plan, func(a *accountdomain.Account) {
		a.GatewayCustomerID = customer.ID
		a.GatewaySubscriptionID = "sub_gone"
		a.CardToken = "tok_new_card"
	})
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountUpdate, account.ID))

	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, billingsyncdomain.JobStatusSucceeded, f.onlyJob(t).Status)

	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	assert.NotEqual(t, "sub_gone", stored.GatewaySubscriptionID)
	assert.NotEmpty(t, stored.GatewaySubscriptionID)
	assert.Equal(t, accountdomain.CardTokenSentinel, stored.CardToken)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, f.clk.Now().AddDate(0, 1, 0), stored.ExpiresAt.UTC())
}

func TestAccountCancelClearsSubscriptionRef(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	customer, err := f.fake.CreateCustomer(ctx, gateway.CustomerInput{Email: "ops@acme.test", Name: "Acme"})
	require.NoError(t, err)
	sub, err := f.fake.CreateSubscription(ctx, gateway.SubscriptionInput{CustomerID: customer.ID, PlanID: "plan_x"})
	require.NoError(t, err)
	account := f.seedAccount(t, plan, func(a *accountdomain.Account) {
		a.GatewayCustomerID = customer.ID
		a.GatewaySubscriptionID = sub.ID
	})
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCancel, account.ID))

	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, billingsyncdomain.JobStatusSucceeded, f.onlyJob(t).Status)

	_, ok := f.fake.Subscription(sub.ID)
	assert.False(t, ok)
	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	assert.Empty(t, stored.GatewaySubscriptionID)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, f.clk.Now(), stored.ExpiresAt.UTC())
}

func TestAccountCancelWritesBackCancellationTime(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	account := f.seedAccount(t, plan, nil)
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, plan.ID))
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID))
	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	var created accountdomain.Account
	require.NoError(t, f.db.First(&created, "id = ?", account.ID).Error)
	require.NotNil(t, created.ExpiresAt)
	periodEnd := created.ExpiresAt.UTC()

	// Cancelled mid-period: access ends at the cancellation time, not
	// the period end recorded on create.
	f.clk.Advance(10 * 24 * time.Hour)
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCancel, account.ID))
	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	require.NotNil(t, stored.ExpiresAt)
	assert.NotEqual(t, periodEnd, stored.ExpiresAt.UTC())
	assert.Equal(t, f.clk.Now(), stored.ExpiresAt.UTC())
	assert.Empty(t, stored.GatewaySubscriptionID)
}

func TestAccountUpdateWritesBackRenewedExpiry(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	account := f.seedAccount(t, plan, nil)
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountCreate, account.ID))
	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	f.clk.Advance(31 * 24 * time.Hour)
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountUpdate, account.ID))
	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, f.clk.Now().AddDate(0, 1, 0), stored.ExpiresAt.UTC())
}

func TestAccountRestoreRecreatesSubscription(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	customer, err := f.fake.CreateCustomer(ctx, gateway.CustomerInput{Email: "ops@acme.test", Name: "Acme"})
	require.NoError(t, err)
	account := f.seedAccount(t, plan, func(a *accountdomain.Account) {
		a.GatewayCustomerID = customer.ID
	})
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindAccountRestore, account.ID))

	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, billingsyncdomain.JobStatusSucceeded, f.onlyJob(t).Status)

	var stored accountdomain.Account
	require.NoError(t, f.db.First(&stored, "id = ?", account.ID).Error)
	assert.NotEmpty(t, stored.GatewaySubscriptionID)
	require.NotNil(t, stored.ExpiresAt)
	assert.Equal(t, f.clk.Now().AddDate(0, 1, 0), stored.ExpiresAt.UTC())
}

func TestPlanPayloadsCarryStatement(t *testing.T) {
	f := newSyncFixture(t, config.Config{})
	ctx := context.Background()

	plan := f.seedPlan(t, "Pro")
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanCreate, plan.ID))
	_, err := f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	remoteID := "plan_" + plan.ID.String()
	remote, ok := f.fake.Plan(remoteID)
	require.True(t, ok)
	assert.Equal(t, "ATLAS Pro", remote.Statement)
	assert.Equal(t, int64(2900), remote.AmountCents)

	require.NoError(t, f.db.Model(&plandomain.Plan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]any{"name": "Pro Annual", "statement": "ATLAS PRO-A"}).Error)
	require.NoError(t, f.svc.Enqueue(ctx, billingsyncdomain.KindPlanUpdate, plan.ID))
	_, err = f.svc.RunPending(ctx, 10)
	require.NoError(t, err)

	remote, ok = f.fake.Plan(remoteID)
	require.True(t, ok)
	assert.Equal(t, "Pro Annual", remote.Name)
	assert.Equal(t, "ATLAS PRO-A", remote.Statement)
	assert.Equal(t, int64(2900), remote.AmountCents)
}

func TestPlanUpdatePayloadOmitsBilledTerms(t *testing.T) {
	plan := &plandomain.Plan{
		Name:            "Pro",
		Statement:       "ATLAS PRO",
		AmountCents:     2900,
		Currency:        "USD",
		Interval:        plandomain.IntervalMonth,
		IntervalCount:   1,
		TrialPeriodDays: 14,
	}
	payload := planUpdatePayload(plan, "plan_1")
	assert.Equal(t, gateway.Plan{ID: "plan_1", Name: "Pro", Statement: "ATLAS PRO"}, payload)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 30*time.Second, backoff(1))
	assert.Equal(t, time.Minute, backoff(2))
	assert.Equal(t, 4*time.Minute, backoff(4))
	assert.Equal(t, 30*time.Minute, backoff(8))
	assert.Equal(t, 30*time.Minute, backoff(50))
}
