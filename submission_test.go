package reviewloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

// ownerWithApprovedReview returns a standard account that has completed one review and so
// holds one earned credit.
func ownerWithApprovedReview(t *testing.T, env *testEnv) *model.Account {
	t.Helper()
	other := env.account(t, model.TierStandard, false)
	owner := env.account(t, model.TierStandard, true)
	env.queued(t, other, env.clock.Now())

	result, err := env.engine.RequestAssignment(context.Background(), owner.AccountID, "")
	require.NoError(t, err)
	require.NotNil(t, result.Assignment)
	env.approveReview(t, result.Assignment)
	return owner
}

func TestSubmitItemToQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := ownerWithApprovedReview(t, env)
	item := env.item(t, owner)

	queued, err := env.engine.SubmitItemToQueue(ctx, owner.AccountID, item.ItemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemQueued, queued.Status)
	assert.Equal(t, env.clock.Now(), *queued.QueueEnteredAt)

	balance, err := env.engine.GetBalance(ctx, owner.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	entries, err := env.engine.GetLedgerEntries(ctx, owner.AccountID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.LedgerSpent, entries[0].Kind)
	assert.Equal(t, int64(-1), entries[0].Amount)
	assert.Equal(t, model.Balance(entries), balance)

	_, err = env.engine.SubmitItemToQueue(ctx, owner.AccountID, item.ItemID)
	assert.True(t, apierror.Is(err, apierror.ErrStateConflict))

	assert.Eventually(t, func() bool { return env.notifier.count(EventItemQueued) == 1 }, time.Second, 10*time.Millisecond)
}

func TestSubmitItemToQueue_InsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := ownerWithApprovedReview(t, env)
	first := env.item(t, owner)
	second := env.item(t, owner)

	_, err := env.engine.SubmitItemToQueue(ctx, owner.AccountID, first.ItemID)
	require.NoError(t, err)

	_, err = env.engine.SubmitItemToQueue(ctx, owner.AccountID, second.ItemID)
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientCredits))

	// nothing from the failed attempt was kept
	assert.Equal(t, model.ItemUnlisted, env.readItem(t, second.ItemID).Status)
	summary, err := env.engine.GetAccountSummary(ctx, owner.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MonthlySubmissionCount)
	assert.Equal(t, int64(0), summary.Balance)
}

func TestSubmitItemToQueue_RequiresApprovedReview(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, model.TierStandard, true)
	env.grant(t, owner, 3)
	item := env.item(t, owner)

	_, err := env.engine.SubmitItemToQueue(context.Background(), owner.AccountID, item.ItemID)
	assert.True(t, apierror.Is(err, apierror.ErrStateConflict))
}

func TestSubmitItemToQueue_OtherOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, model.TierStandard, false)
	stranger := env.account(t, model.TierStandard, false)
	item := env.item(t, owner)

	_, err := env.engine.SubmitItemToQueue(context.Background(), stranger.AccountID, item.ItemID)
	assert.True(t, apierror.Is(err, apierror.ErrForbidden))
}

func TestSubmitItemToQueue_CapAndCycleReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := ownerWithApprovedReview(t, env)
	env.grant(t, owner, 10)
	resetAnchor := env.clock.Now()

	for i := 0; i < 4; i++ {
		item := env.item(t, owner)
		_, err := env.engine.SubmitItemToQueue(ctx, owner.AccountID, item.ItemID)
		require.NoError(t, err)
	}

	fifth := env.item(t, owner)
	_, err := env.engine.SubmitItemToQueue(ctx, owner.AccountID, fifth.ItemID)
	assert.True(t, apierror.Is(err, apierror.ErrCapReached))

	summary, err := env.engine.GetAccountSummary(ctx, owner.AccountID)
	require.NoError(t, err)
	require.NotNil(t, summary.SubmissionsRemaining)
	assert.Equal(t, 0, *summary.SubmissionsRemaining)

	// lastResetDate is the account creation time, 28 days from there reopens the cycle
	env.clock.Set(resetAnchor.Add(-time.Hour).Add(28 * 24 * time.Hour))
	_, err = env.engine.SubmitItemToQueue(ctx, owner.AccountID, fifth.ItemID)
	require.NoError(t, err)

	summary, err = env.engine.GetAccountSummary(ctx, owner.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MonthlySubmissionCount)
	assert.Equal(t, env.clock.Now(), summary.LastResetDate)
}

func TestSubmitItemToQueue_PriorityIsUncapped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	other := env.account(t, model.TierStandard, false)
	owner := env.account(t, model.TierPriority, true)
	env.queued(t, other, testStart)
	result, err := env.engine.RequestAssignment(ctx, owner.AccountID, "")
	require.NoError(t, err)
	env.approveReview(t, result.Assignment)
	env.grant(t, owner, 10)

	for i := 0; i < 6; i++ {
		item := env.item(t, owner)
		_, err := env.engine.SubmitItemToQueue(ctx, owner.AccountID, item.ItemID)
		require.NoError(t, err)
	}

	summary, err := env.engine.GetAccountSummary(ctx, owner.AccountID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.MonthlySubmissionCount)
	assert.Nil(t, summary.SubmissionsRemaining)
	assert.Equal(t, int64(5), summary.Balance)
}

func TestCreateItem_Validation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, model.TierStandard, false)

	_, err := env.engine.CreateItem(context.Background(), owner.AccountID, "  ")
	assert.True(t, apierror.Is(err, apierror.ErrValidation))

	_, err = env.engine.CreateItem(context.Background(), "acc_missing", "widget")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}
