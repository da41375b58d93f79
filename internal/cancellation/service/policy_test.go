package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	"github.com/saasykit/atlas/internal/cancellation/repository"
	"github.com/saasykit/atlas/internal/clock"
	"github.com/saasykit/atlas/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newPolicyService(t *testing.T) cancellationdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&cancellationdomain.Category{}, &cancellationdomain.Reason{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func fieldCodes(t *testing.T, err error) map[string]string {
	t.Helper()
	verr, ok := validation.AsErrors(err)
	require.True(t, ok, "expected field errors, got %v", err)
	out := map[string]string{}
	for _, f := range verr.Fields {
		out[f.Field] = f.Code
	}
	return out
}

func TestValidateRequiresCategory(t *testing.T) {
	svc := newPolicyService(t)

	_, err := svc.Validate(context.Background(), cancellationdomain.CancelInput{})
	codes := fieldCodes(t, err)
	assert.Equal(t, "required", codes["category"])
}

func TestValidateDanglingCategoryIsHardError(t *testing.T) {
	svc := newPolicyService(t)

	_, err := svc.Validate(context.Background(), cancellationdomain.CancelInput{CategoryID: "999"})
	assert.ErrorIs(t, err, cancellationdomain.ErrCategoryNotFound)
}

func TestValidateReasonRequiredOnlyWithActiveReasons(t *testing.T) {
	svc := newPolicyService(t)
	ctx := context.Background()

	bare, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "No longer needed"})
	require.NoError(t, err)

	// No reasons configured: category alone is enough.
	resolved, err := svc.Validate(ctx, cancellationdomain.CancelInput{CategoryID: bare.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, bare.ID, resolved.CategoryID)
	assert.Nil(t, resolved.ReasonID)

	withReasons, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "Too expensive"})
	require.NoError(t, err)
	reason, err := svc.CreateReason(ctx, withReasons.ID.String(), cancellationdomain.ReasonRequest{Name: "Over budget"})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, cancellationdomain.CancelInput{CategoryID: withReasons.ID.String()})
	codes := fieldCodes(t, err)
	assert.Equal(t, "required", codes["reason"])

	resolved, err = svc.Validate(ctx, cancellationdomain.CancelInput{
		CategoryID: withReasons.ID.String(),
		ReasonID:   reason.ID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, resolved.ReasonID)
	assert.Equal(t, reason.ID, *resolved.ReasonID)
}

func TestValidateInactiveReasonsDoNotGate(t *testing.T) {
	svc := newPolicyService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "Switching"})
	require.NoError(t, err)
	inactive := false
	_, err = svc.CreateReason(ctx, category.ID.String(), cancellationdomain.ReasonRequest{
		Name:   "Old reason",
		Active: &inactive,
	})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, cancellationdomain.CancelInput{CategoryID: category.ID.String()})
	assert.NoError(t, err)
}

func TestValidateMessageRequirement(t *testing.T) {
	svc := newPolicyService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{
		Name:           "Missing features",
		RequireMessage: true,
	})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, cancellationdomain.CancelInput{CategoryID: category.ID.String()})
	codes := fieldCodes(t, err)
	assert.Equal(t, "required", codes["message"])

	resolved, err := svc.Validate(ctx, cancellationdomain.CancelInput{
		CategoryID: category.ID.String(),
		Message:    "  needs SSO  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "needs SSO", resolved.Message)
}

func TestValidateReasonLevelMessageRequirement(t *testing.T) {
	svc := newPolicyService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "Other"})
	require.NoError(t, err)
	strict, err := svc.CreateReason(ctx, category.ID.String(), cancellationdomain.ReasonRequest{
		Name:           "Something else",
		RequireMessage: true,
	})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, cancellationdomain.CancelInput{
		CategoryID: category.ID.String(),
		ReasonID:   strict.ID.String(),
	})
	codes := fieldCodes(t, err)
	assert.Equal(t, "required", codes["message"])
}

func TestValidateRejectsReasonFromOtherCategory(t *testing.T) {
	svc := newPolicyService(t)
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "First"})
	require.NoError(t, err)
	second, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{Name: "Second"})
	require.NoError(t, err)
	foreign, err := svc.CreateReason(ctx, second.ID.String(), cancellationdomain.ReasonRequest{Name: "Elsewhere"})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, cancellationdomain.CancelInput{
		CategoryID: first.ID.String(),
		ReasonID:   foreign.ID.String(),
	})
	assert.ErrorIs(t, err, cancellationdomain.ErrInvalidReason)
}

func TestRequireMessageImpliesAllowMessage(t *testing.T) {
	svc := newPolicyService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, cancellationdomain.CategoryRequest{
		Name:           "Strict",
		AllowMessage:   false,
		RequireMessage: true,
	})
	require.NoError(t, err)
	assert.True(t, category.AllowMessage)

	reason, err := svc.CreateReason(ctx, category.ID.String(), cancellationdomain.ReasonRequest{
		Name:           "Strict reason",
		RequireMessage: true,
	})
	require.NoError(t, err)
	assert.True(t, reason.AllowMessage)

	updated, err := svc.UpdateCategory(ctx, category.ID.String(), cancellationdomain.CategoryRequest{
		Name:           "Strict",
		RequireMessage: true,
	})
	require.NoError(t, err)
	assert.True(t, updated.AllowMessage)
}
