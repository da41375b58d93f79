package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	accountdomain "github.com/saasykit/atlas/internal/account/domain"
	accountrepository "github.com/saasykit/atlas/internal/account/repository"
	"github.com/saasykit/atlas/internal/clock"
	invitationdomain "github.com/saasykit/atlas/internal/invitation/domain"
	"github.com/saasykit/atlas/internal/invitation/repository"
	plandomain "github.com/saasykit/atlas/internal/plan/domain"
	"github.com/saasykit/atlas/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{done: make(chan struct{}, 8)}
}

func (m *recordingMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	m.mu.Lock()
	m.sent = append(m.sent, to...)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *recordingMailer) recipients(t *testing.T) []string {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("mail was never sent")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func newInvitationService(t *testing.T) (invitationdomain.Service, *accountdomain.Account, *recordingMailer) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&plandomain.Plan{},
		&accountdomain.Account{},
		&invitationdomain.Invitation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mailer := newRecordingMailer()

	account := &accountdomain.Account{
		ID:           node.Generate(),
		CompanyName:  "Acme",
		ContactEmail: "ops@acme.test",
		Active:       true,
		PlanID:       node.Generate(),
		CreatedAt:    clk.Now(),
		UpdatedAt:    clk.Now(),
	}
	require.NoError(t, db.Create(account).Error)

	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		AccountRepo: accountrepository.Provide(),
		Mailer:      mailer,
	})
	return svc, account, mailer
}

func TestInviteCreatesPendingInvitationAndMails(t *testing.T) {
	svc, account, mailer := newInvitationService(t)

	invitation, err := svc.Invite(context.Background(), invitationdomain.InviteRequest{
		AccountID: account.ID.String(),
		Email:     "  Jo@Example.Test ",
	})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.test", invitation.Email)
	assert.Equal(t, "member", invitation.Role)
	assert.Equal(t, invitationdomain.StatusPending, invitation.Status)
	assert.NotEmpty(t, invitation.Code)

	assert.Equal(t, []string{"jo@example.test"}, mailer.recipients(t))
}

func TestInviteValidatesInput(t *testing.T) {
	svc, _, _ := newInvitationService(t)

	_, err := svc.Invite(context.Background(), invitationdomain.InviteRequest{Email: "not-an-email"})
	verr, ok := validation.AsErrors(err)
	require.True(t, ok)
	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["account_id"])
}

func TestInviteUnknownAccount(t *testing.T) {
	svc, _, _ := newInvitationService(t)

	_, err := svc.Invite(context.Background(), invitationdomain.InviteRequest{
		AccountID: "999999999",
		Email:     "jo@example.test",
	})
	assert.ErrorIs(t, err, accountdomain.ErrAccountNotFound)
}

func TestAcceptIsSingleUse(t *testing.T) {
	svc, account, _ := newInvitationService(t)
	ctx := context.Background()

	invitation, err := svc.Invite(ctx, invitationdomain.InviteRequest{
		AccountID: account.ID.String(),
		Email:     "jo@example.test",
	})
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, invitationdomain.AcceptRequest{Code: invitation.Code})
	require.NoError(t, err)
	assert.Equal(t, invitationdomain.StatusAccepted, accepted.Status)

	_, err = svc.Accept(ctx, invitationdomain.AcceptRequest{Code: invitation.Code})
	assert.ErrorIs(t, err, invitationdomain.ErrAlreadyAccepted)

	_, err = svc.Accept(ctx, invitationdomain.AcceptRequest{Code: "bogus"})
	assert.ErrorIs(t, err, invitationdomain.ErrInvitationNotFound)
}

func TestListByAccount(t *testing.T) {
	svc, account, _ := newInvitationService(t)
	ctx := context.Background()

	_, err := svc.Invite(ctx, invitationdomain.InviteRequest{AccountID: account.ID.String(), Email: "a@example.test"})
	require.NoError(t, err)
	_, err = svc.Invite(ctx, invitationdomain.InviteRequest{AccountID: account.ID.String(), Email: "b@example.test"})
	require.NoError(t, err)

	invitations, err := svc.List(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Len(t, invitations, 2)
}
