package reviewloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/model"
)

func itemIDs(items []model.QueuedItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ItemID
	}
	return ids
}

func TestDequeueCandidates_PriorityBeforeStandard(t *testing.T) {
	env := newTestEnv(t)
	standard := env.account(t, model.TierStandard, false)
	priority := env.account(t, model.TierPriority, false)

	oldStandard := env.queued(t, standard, testStart.Add(-48*time.Hour))
	newStandard := env.queued(t, standard, testStart.Add(-time.Hour))
	newPriority := env.queued(t, priority, testStart.Add(-2*time.Hour))
	oldPriority := env.queued(t, priority, testStart.Add(-3*time.Hour))

	tests := []struct {
		name string
		max  int
		want []string
	}{
		{name: "zero", max: 0, want: []string{}},
		{name: "priority only", max: 2, want: []string{oldPriority.ItemID, newPriority.ItemID}},
		{name: "fills with standard", max: 3, want: []string{oldPriority.ItemID, newPriority.ItemID, oldStandard.ItemID}},
		{name: "everything", max: 10, want: []string{oldPriority.ItemID, newPriority.ItemID, oldStandard.ItemID, newStandard.ItemID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []model.QueuedItem
			err := env.store.RunInTx(context.Background(), func(repo database.Repository) error {
				var err error
				got, err = dequeueCandidates(context.Background(), repo, tt.max)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, itemIDs(got))
		})
	}
}

func TestDequeueCandidates_TieBreakOnItemID(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, model.TierStandard, false)
	a := env.queued(t, owner, testStart)
	b := env.queued(t, owner, testStart)

	want := []string{a.ItemID, b.ItemID}
	if b.ItemID < a.ItemID {
		want = []string{b.ItemID, a.ItemID}
	}

	got, err := env.engine.QueueSnapshot(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, want, itemIDs(got))
	assert.Equal(t, model.TierStandard, got[0].OwnerTier)
}

func TestQueueSnapshot_IgnoresItemsNotQueued(t *testing.T) {
	env := newTestEnv(t)
	owner := env.account(t, model.TierStandard, false)
	env.item(t, owner)
	queued := env.queued(t, owner, testStart)

	got, err := env.engine.QueueSnapshot(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []string{queued.ItemID}, itemIDs(got))
}
