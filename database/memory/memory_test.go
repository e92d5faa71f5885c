/*
Copyright 2024 Reviewloop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(repo database.Repository) error {
		for _, a := range []model.Account{
			{AccountID: "acc_o", Name: "owner", Tier: model.TierStandard, LastResetDate: base, CreatedAt: base},
			{AccountID: "acc_p", Name: "vip", Tier: model.TierPriority, LastResetDate: base, CreatedAt: base},
			{AccountID: "acc_r", Name: "reviewer", Tier: model.TierStandard, Qualified: true, LastResetDate: base, CreatedAt: base},
		} {
			a := a
			if err := repo.CreateAccount(context.Background(), &a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := New()
	seed(t, s)
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(repo database.Repository) error {
		if err := repo.AppendLedgerEntry(context.Background(), &model.LedgerEntry{
			EntryID: "led_1", AccountID: "acc_o", Amount: 5, Kind: model.LedgerEarned, CreatedAt: base,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var balance int64
	require.NoError(t, s.RunInTx(context.Background(), func(repo database.Repository) error {
		var err error
		balance, err = repo.GetBalance(context.Background(), "acc_o")
		return err
	}))
	assert.Equal(t, int64(0), balance)
}

func TestInjectFault_FiresOnce(t *testing.T) {
	s := New()
	seed(t, s)
	boom := errors.New("disk on fire")
	s.InjectFault("GetAccount", boom)

	run := func() error {
		return s.RunInTx(context.Background(), func(repo database.Repository) error {
			_, err := repo.GetAccount(context.Background(), "acc_o")
			return err
		})
	}
	assert.ErrorIs(t, run(), boom)
	assert.NoError(t, run())
}

func TestListQueuedItems_FIFOPerTier(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		for i, tc := range []struct {
			id, owner string
			at        time.Time
		}{
			{"itm_late", "acc_o", base.Add(2 * time.Minute)},
			{"itm_early", "acc_o", base},
			{"itm_vip", "acc_p", base.Add(time.Minute)},
			{"itm_tie", "acc_o", base},
		} {
			at := tc.at
			item := &model.Item{ItemID: tc.id, OwnerAccountID: tc.owner, Name: tc.id, Status: model.ItemQueued, QueueEnteredAt: &at, CreatedAt: base.Add(time.Duration(i))}
			if err := repo.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		standard, err := repo.ListQueuedItems(ctx, model.TierStandard, 0)
		require.NoError(t, err)
		ids := []string{}
		for _, i := range standard {
			ids = append(ids, i.ItemID)
		}
		assert.Equal(t, []string{"itm_early", "itm_tie", "itm_late"}, ids)

		limited, err := repo.ListQueuedItems(ctx, model.TierStandard, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		priority, err := repo.ListQueuedItems(ctx, model.TierPriority, 0)
		require.NoError(t, err)
		require.Len(t, priority, 1)
		assert.Equal(t, model.TierPriority, priority[0].OwnerTier)
		return nil
	}))
}

func TestListQueuedItems_RequeuedFirst(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		for i, id := range []string{"itm_old", "itm_a", "itm_b"} {
			at := base.Add(time.Duration(i) * time.Minute)
			item := &model.Item{ItemID: id, OwnerAccountID: "acc_o", Name: id, Status: model.ItemQueued, QueueEnteredAt: &at, CreatedAt: base}
			if err := repo.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		if err := repo.RequeueItem(ctx, "itm_a", base.Add(time.Hour)); err != nil {
			return err
		}
		return repo.RequeueItem(ctx, "itm_b", base.Add(2*time.Hour))
	}))

	ids := func() []string {
		var out []string
		require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
			items, err := repo.ListQueuedItems(ctx, model.TierStandard, 0)
			for _, i := range items {
				out = append(out, i.ItemID)
			}
			return err
		}))
		return out
	}
	assert.Equal(t, []string{"itm_b", "itm_a", "itm_old"}, ids())

	// a plain status change drops the marker
	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		if err := repo.UpdateItemStatus(ctx, "itm_b", model.ItemAssigned, nil); err != nil {
			return err
		}
		at := base.Add(3 * time.Hour)
		if err := repo.UpdateItemStatus(ctx, "itm_b", model.ItemQueued, &at); err != nil {
			return err
		}
		item, err := repo.GetItem(ctx, "itm_b")
		require.NoError(t, err)
		assert.Nil(t, item.RequeuedAt)
		assert.False(t, item.Requeued())
		return nil
	}))
	assert.Equal(t, []string{"itm_a", "itm_old", "itm_b"}, ids())

	err := s.RunInTx(ctx, func(repo database.Repository) error {
		return repo.RequeueItem(ctx, "itm_missing", base)
	})
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestCreateAssignment_OneActivePerReviewer(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(repo database.Repository) error {
		first := &model.Assignment{AssignmentID: "asg_1", ItemID: "itm_1", ReviewerAccountID: "acc_r", Status: model.AssignmentAssigned}
		if err := repo.CreateAssignment(ctx, first); err != nil {
			return err
		}
		second := &model.Assignment{AssignmentID: "asg_2", ItemID: "itm_2", ReviewerAccountID: "acc_r", Status: model.AssignmentAssigned}
		return repo.CreateAssignment(ctx, second)
	})
	assert.True(t, apierror.Is(err, apierror.ErrConcurrencyConflict))

	// the failed transaction left nothing behind
	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		busy, err := repo.ListBusyReviewerIDs(ctx)
		assert.Empty(t, busy)
		return err
	}))
}

func TestCreateRelationship_UniquePair(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		return repo.CreateRelationship(ctx, &model.ReviewRelationship{RelationshipID: "rel_1", ReviewerAccountID: "acc_r", OwnerAccountID: "acc_o"})
	}))
	err := s.RunInTx(ctx, func(repo database.Repository) error {
		return repo.CreateRelationship(ctx, &model.ReviewRelationship{RelationshipID: "rel_2", ReviewerAccountID: "acc_r", OwnerAccountID: "acc_o"})
	})
	assert.True(t, apierror.Is(err, apierror.ErrConcurrencyConflict))

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		reviewers, err := repo.ListReviewersForOwner(ctx, "acc_o")
		assert.Equal(t, []string{"acc_r"}, reviewers)
		return err
	}))
}

func TestLedger_NewestFirstWithPaging(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		entries := []model.LedgerEntry{
			{EntryID: "led_1", AccountID: "acc_o", Amount: 2, Kind: model.LedgerEarned, CreatedAt: base},
			{EntryID: "led_2", AccountID: "acc_o", Amount: -1, Kind: model.LedgerSpent, CreatedAt: base.Add(time.Hour)},
			{EntryID: "led_3", AccountID: "acc_o", Amount: 1, Kind: model.LedgerRefunded, CreatedAt: base.Add(2 * time.Hour)},
		}
		for i := range entries {
			if err := repo.AppendLedgerEntry(ctx, &entries[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.RunInTx(ctx, func(repo database.Repository) error {
		page, err := repo.ListLedgerEntries(ctx, "acc_o", 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "led_3", page[0].EntryID)
		assert.Equal(t, "led_2", page[1].EntryID)

		rest, err := repo.ListLedgerEntries(ctx, "acc_o", 2, 2)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "led_1", rest[0].EntryID)

		balance, err := repo.GetBalance(ctx, "acc_o")
		assert.Equal(t, int64(2), balance)
		return err
	}))
}

func TestAppendLedgerEntry_RejectsWrongSign(t *testing.T) {
	s := New()
	seed(t, s)
	err := s.RunInTx(context.Background(), func(repo database.Repository) error {
		return repo.AppendLedgerEntry(context.Background(), &model.LedgerEntry{EntryID: "led_x", AccountID: "acc_o", Amount: 1, Kind: model.LedgerSpent})
	})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
}

func TestClose(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	err := s.RunInTx(context.Background(), func(repo database.Repository) error { return nil })
	assert.True(t, apierror.Is(err, apierror.ErrDependency))
}
