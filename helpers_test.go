package reviewloop

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/database/memory"
	"github.com/reviewloop/reviewloop/model"
)

var testStart = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type capturedEvent struct {
	Event   string
	Payload interface{}
}

type captureNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, capturedEvent{Event: event, Payload: payload})
	return c.err
}

func (c *captureNotifier) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

type testEnv struct {
	engine   *Engine
	store    *memory.Store
	clock    *fakeClock
	notifier *captureNotifier
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	config.MockConfig(&config.Configuration{})

	env := &testEnv{
		store:    memory.New(),
		clock:    &fakeClock{now: testStart},
		notifier: &captureNotifier{},
	}
	base := []Option{
		WithClock(env.clock.Now),
		WithRandSource(rand.NewSource(42)),
		WithNotifier(env.notifier),
	}
	engine, err := NewEngine(env.store, append(base, opts...)...)
	require.NoError(t, err)
	env.engine = engine
	return env
}

func (env *testEnv) account(t *testing.T, tier model.Tier, qualified bool) *model.Account {
	t.Helper()
	a, err := env.engine.CreateAccount(context.Background(), model.Account{
		Name:      gofakeit.Name(),
		Tier:      tier,
		Qualified: qualified,
	})
	require.NoError(t, err)
	return a
}

func (env *testEnv) item(t *testing.T, owner *model.Account) *model.Item {
	t.Helper()
	i, err := env.engine.CreateItem(context.Background(), owner.AccountID, gofakeit.AppName())
	require.NoError(t, err)
	return i
}

// queued creates an item that entered the queue at the given time, skipping the submission
// preconditions.
func (env *testEnv) queued(t *testing.T, owner *model.Account, at time.Time) *model.Item {
	t.Helper()
	i := env.item(t, owner)
	err := env.store.RunInTx(context.Background(), func(repo database.Repository) error {
		return repo.UpdateItemStatus(context.Background(), i.ItemID, model.ItemQueued, &at)
	})
	require.NoError(t, err)
	i.Status = model.ItemQueued
	i.QueueEnteredAt = &at
	return i
}

func (env *testEnv) grant(t *testing.T, account *model.Account, amount int64) {
	t.Helper()
	_, err := env.engine.GrantCredits(context.Background(), account.AccountID, amount, "seed")
	require.NoError(t, err)
}

func (env *testEnv) readItem(t *testing.T, id string) *model.Item {
	t.Helper()
	i, err := env.engine.GetItem(context.Background(), id)
	require.NoError(t, err)
	return i
}

// approveReview walks an assignment through install and review.
func (env *testEnv) approveReview(t *testing.T, a *model.Assignment) *model.AssignmentView {
	t.Helper()
	ctx := context.Background()
	_, err := env.engine.MarkInstalled(ctx, a.AssignmentID, a.ReviewerAccountID)
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	view, err := env.engine.SubmitReview(ctx, a.AssignmentID, a.ReviewerAccountID, goodReview())
	require.NoError(t, err)
	return view
}

func goodReview() model.ReviewSubmission {
	return model.ReviewSubmission{
		Text:          "Solid build, installs cleanly.",
		Rating:        5,
		SubmittedDate: testStart,
		Confirmed:     true,
	}
}
