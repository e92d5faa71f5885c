package reviewloop

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
)

// withRetry retries fn while it reports a concurrency conflict. Any other error stops the
// loop immediately.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.cnf.Matching.Retries()), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if apierror.Is(err, apierror.ErrConcurrencyConflict) {
			logrus.Warnf("%s: concurrency conflict on attempt %d", op, attempt)
			e.metrics.ConflictRetry(op)
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// inTx runs fn in a store transaction and retries it on concurrency conflicts. fn must not
// leak partial results across attempts.
func (e *Engine) inTx(ctx context.Context, op string, fn func(repo database.Repository) error) error {
	return e.withRetry(ctx, op, func() error {
		return e.store.RunInTx(ctx, fn)
	})
}
