package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	accountrepository "github.com/saasykit/atlas/internal/account/repository"
	appeventdomain "github.com/saasykit/atlas/internal/appevent/domain"
	billingsyncdomain "github.com/saasykit/atlas/internal/billingsync/domain"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	cancellationrepository "github.com/saasykit/atlas/internal/cancellation/repository"
	cancellationservice "github.com/saasykit/atlas/internal/cancellation/service"
	"github.com/saasykit/atlas/internal/clock"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	planrepository "github.com/saasykit/atlas/internal/plan/repository"
	"github.com/saasykit/atlas/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingDispatcher struct {
	kinds []billingsyncdomain.Kind
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, kind billingsyncdomain.Kind, targetID snowflake.ID) error {
	d.kinds = append(d.kinds, kind)
	return nil
}

type recordingEvents struct {
	levels   []appeventdomain.Level
	messages []string
}

func (r *recordingEvents) Record(ctx context.Context, level appeventdomain.Level, message string, opts ...appeventdomain.Option) {
	r.levels = append(r.levels, level)
	r.messages = append(r.messages, message)
}

func (r *recordingEvents) List(ctx context.Context, req appeventdomain.ListRequest) ([]appeventdomain.AppEvent, error) {
	return nil, nil
}

type fixture struct {
	svc        accountdomain.Service
	policy     cancellationdomain.Service
	db         *gorm.DB
	clk        *clock.FakeClock
	dispatcher *recordingDispatcher
	events     *recordingEvents
	plan       *plandomain.Plan
	pausedPlan *plandomain.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&accountdomain.Account{},
		&cancellationdomain.Category{},
		&cancellationdomain.Reason{},
		&appeventdomain.AppEvent{},
		&invitationdomain.Invitation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	dispatcher := &recordingDispatcher{}
	events := &recordingEvents{}

	policy := cancellationservice.NewService(cancellationservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  cancellationrepository.Provide(),
	})

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       accountrepository.Provide(),
		PlanRepo:   planrepository.Provide(),
		Policy:     policy,
		Dispatcher: dispatcher,
		Events:     events,
	})

	now := clk.Now()
	pausedPlan := &plandomain.Plan{
		ID:          node.Generate(),
		Name:        "Paused",
		Code:        "paused",
		AmountCents: 0,
		Currency:    "USD",
		Interval:    plandomain.IntervalMonth,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, db.Create(pausedPlan).Error)

	plan := &plandomain.Plan{
		ID:              node.Generate(),
		Name:            "Pro",
		Code:            "pro",
		AmountCents:     2900,
		Currency:        "USD",
		Interval:        plandomain.IntervalMonth,
		Active:          true,
		AllowCustomPath: true,
		AllowSubdomain:  true,
		PausedPlanID:    &pausedPlan.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, db.Create(plan).Error)

	return &fixture{
		svc:        svc,
		policy:     policy,
		db:         db,
		clk:        clk,
		dispatcher: dispatcher,
		events:     events,
		plan:       plan,
		pausedPlan: pausedPlan,
	}
}

func (f *fixture) createAccount(t *testing.T) *accountdomain.Account {
	t.Helper()
	account, err := f.svc.Create(context.Background(), accountdomain.CreateRequest{
		CompanyName:  "Acme Corp",
		ContactEmail: "Ops@Acme.Test",
		PlanID:       f.plan.ID.String(),
		CustomPath:   "Acme Corp",
		Subdomain:    "acme",
		Hostname:     "www.acme.test",
	})
	require.NoError(t, err)
	return account
}

func TestCreateNormalizesAndGatesAddressing(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)

	assert.Equal(t, "ops@acme.test", account.ContactEmail)
	require.NotNil(t, account.CustomPath)
	assert.Equal(t, "acme-corp", *account.CustomPath)
	require.NotNil(t, account.Subdomain)
	assert.Equal(t, "acme", *account.Subdomain)
	// Plan does not allow hostnames; the value is dropped, not stored.
	assert.Nil(t, account.Hostname)

	require.Len(t, f.dispatcher.kinds, 1)
	assert.Equal(t, billingsyncdomain.KindAccountCreate, f.dispatcher.kinds[0])
	assert.Equal(t, accountdomain.StatusActive, account.Status(f.clk.Now()))
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), accountdomain.CreateRequest{
		ContactEmail: "not-an-email",
	})
	verr, ok := validation.AsErrors(err)
	require.True(t, ok)
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["company_name"])
	assert.True(t, fields["contact_email"])
	assert.True(t, fields["plan_id"])
}

func TestPauseRequiresConfiguredFallback(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)

	require.NoError(t, f.db.Model(&plandomain.Plan{}).
		Where("id = ?", f.plan.ID).
		Update("paused_plan_id", nil).Error)

	_, err := f.svc.Pause(context.Background(), account.ID.String())
	assert.ErrorIs(t, err, accountdomain.ErrNoPausedPlan)

	// No side effects on the stored row.
	stored, err := f.svc.Get(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.Nil(t, stored.PausedPlanID)
}

func TestPauseAndUnpause(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)

	paused, err := f.svc.Pause(context.Background(), account.ID.String())
	require.NoError(t, err)
	require.NotNil(t, paused.PausedPlanID)
	assert.Equal(t, f.pausedPlan.ID, *paused.PausedPlanID)
	assert.Equal(t, accountdomain.StatusPaused, paused.Status(f.clk.Now()))
	assert.Equal(t, f.pausedPlan.ID, paused.EffectivePlanID())

	resumed, err := f.svc.Unpause(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.Nil(t, resumed.PausedPlanID)
	assert.Equal(t, accountdomain.StatusActive, resumed.Status(f.clk.Now()))
}

func TestCancelRunsPolicyAndDeactivates(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)
	ctx := context.Background()

	category, err := f.policy.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "Too expensive"})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, account.ID.String(), accountdomain.CancelRequest{
		CategoryID: category.ID.String(),
		Message:    "over budget",
	})
	require.NoError(t, err)
	assert.False(t, cancelled.Active)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, accountdomain.StatusCancelled, cancelled.Status(f.clk.Now()))
	assert.Equal(t, billingsyncdomain.KindAccountCancel, f.dispatcher.kinds[len(f.dispatcher.kinds)-1])
	assert.Contains(t, f.events.levels, appeventdomain.LevelWarning)
}

func TestCancelPolicyFailureLeavesAccountUntouched(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)

	_, err := f.svc.Cancel(context.Background(), account.ID.String(), accountdomain.CancelRequest{})
	_, ok := validation.AsErrors(err)
	require.True(t, ok)

	stored, err := f.svc.Get(context.Background(), account.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Nil(t, stored.CancelledAt)
}

func TestRestoreClearsCancellationKeepsPause(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)
	ctx := context.Background()

	_, err := f.svc.Pause(ctx, account.ID.String())
	require.NoError(t, err)

	category, err := f.policy.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "Leaving"})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, account.ID.String(), accountdomain.CancelRequest{CategoryID: category.ID.String()})
	require.NoError(t, err)

	restored, err := f.svc.Restore(ctx, account.ID.String())
	require.NoError(t, err)
	assert.True(t, restored.Active)
	assert.Nil(t, restored.CancelledAt)
	assert.Nil(t, restored.CancellationCategoryID)
	assert.Nil(t, restored.CancellationReasonID)
	assert.Empty(t, restored.CancellationMessage)
	// The pause survives a restore; resuming billing is a separate call.
	require.NotNil(t, restored.PausedPlanID)
	assert.Equal(t, accountdomain.StatusPaused, restored.Status(f.clk.Now()))
	assert.Equal(t, billingsyncdomain.KindAccountRestore, f.dispatcher.kinds[len(f.dispatcher.kinds)-1])
}

func TestUpdateReappliesPlanGates(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)

	// Moving to a plan without custom paths drops the stored path.
	strict := &plandomain.Plan{
		ID:          snowflake.ID(9001),
		Name:        "Strict",
		Code:        "strict",
		AmountCents: 900,
		Currency:    "USD",
		Interval:    plandomain.IntervalMonth,
		Active:      true,
		CreatedAt:   f.clk.Now(),
		UpdatedAt:   f.clk.Now(),
	}
	require.NoError(t, f.db.Create(strict).Error)

	planID := strict.ID.String()
	updated, err := f.svc.Update(context.Background(), account.ID.String(), accountdomain.UpdateRequest{
		PlanID: &planID,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.CustomPath)
	assert.Nil(t, updated.Subdomain)
	assert.Equal(t, strict.ID, updated.PlanID)
}

func TestDestroyCascades(t *testing.T) {
	f := newFixture(t)
	account := f.createAccount(t)
	ctx := context.Background()

	invitation := invitationdomain.Invitation{
		ID:        snowflake.ID(501),
		AccountID: account.ID,
		Email:     "new@acme.test",
		Role:      "member",
		Code:      "code-1",
		Status:    invitationdomain.StatusPending,
		CreatedAt: f.clk.Now(),
		UpdatedAt: f.clk.Now(),
	}
	require.NoError(t, f.db.Create(&invitation).Error)

	event := appeventdomain.AppEvent{
		ID:        snowflake.ID(502),
		Level:     appeventdomain.LevelInfo,
		Message:   "hello",
		AccountID: &account.ID,
		CreatedAt: f.clk.Now(),
	}
	require.NoError(t, f.db.Create(&event).Error)

	require.NoError(t, f.svc.Destroy(ctx, account.ID.String()))

	_, err := f.svc.Get(ctx, account.ID.String())
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)

	var invitations, events int64
	require.NoError(t, f.db.Model(&invitationdomain.Invitation{}).Where("account_id = ?", account.ID).Count(&invitations).Error)
	require.NoError(t, f.db.Model(&appeventdomain.AppEvent{}).Where("account_id = ?", account.ID).Count(&events).Error)
	assert.Zero(t, invitations)
	assert.Zero(t, events)
}
