package reviewloop

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

func TestGrantCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, model.TierStandard, false)

	entry, err := env.engine.GrantCredits(ctx, account.AccountID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, model.LedgerEarned, entry.Kind)
	assert.Equal(t, "credit grant", entry.Description)

	_, err = env.engine.GrantCredits(ctx, account.AccountID, 0, "nothing")
	assert.True(t, apierror.Is(err, apierror.ErrValidation))

	_, err = env.engine.GrantCredits(ctx, "acc_missing", 1, "")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))

	balance, err := env.engine.GetBalance(ctx, account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

func TestSpend_NeverOverdraws(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, model.TierStandard, false)
	env.grant(t, account, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := env.engine.inTx(ctx, "spend", func(repo database.Repository) error {
				if _, err := repo.GetAccount(ctx, account.AccountID); err != nil {
					return err
				}
				_, err := env.engine.spend(ctx, repo, account.AccountID, 1, "test", "")
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else {
				assert.True(t, apierror.Is(err, apierror.ErrInsufficientCredits))
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 7, rejected)

	balance, err := env.engine.GetBalance(ctx, account.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	entries, err := env.engine.GetLedgerEntries(ctx, account.AccountID, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, balance, model.Balance(entries))
}

func TestAppendEntry_RejectsWrongSign(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, model.TierStandard, false)

	err := env.store.RunInTx(ctx, func(repo database.Repository) error {
		_, err := env.engine.appendEntry(ctx, repo, account.AccountID, 1, model.LedgerSpent, "bad", "")
		return err
	})
	assert.True(t, apierror.Is(err, apierror.ErrValidation))
}

func TestGetLedgerEntries_Paging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.account(t, model.TierStandard, false)
	for i := 0; i < 25; i++ {
		env.grant(t, account, 1)
	}

	page, err := env.engine.GetLedgerEntries(ctx, account.AccountID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, defaultLedgerPageSize)

	rest, err := env.engine.GetLedgerEntries(ctx, account.AccountID, 500, 20)
	require.NoError(t, err)
	assert.Len(t, rest, 5)

	_, err = env.engine.GetLedgerEntries(ctx, account.AccountID, 10, -1)
	assert.True(t, apierror.Is(err, apierror.ErrValidation))
}
