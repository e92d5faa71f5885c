package reviewloop

import (
	"context"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/model"
)

// dequeueCandidates returns up to max queued items in matching order. Every queued priority
// item precedes every standard item; within a tier items are ordered by queue entry time
// with the item id as tie-break.
func dequeueCandidates(ctx context.Context, repo database.Repository, max int) ([]model.QueuedItem, error) {
	if max <= 0 {
		return []model.QueuedItem{}, nil
	}

	candidates, err := repo.ListQueuedItems(ctx, model.TierPriority, max)
	if err != nil {
		return nil, err
	}
	if len(candidates) >= max {
		return candidates[:max], nil
	}

	standard, err := repo.ListQueuedItems(ctx, model.TierStandard, max-len(candidates))
	if err != nil {
		return nil, err
	}
	return append(candidates, standard...), nil
}

// QueueSnapshot lists the queue in the order the matcher would consume it.
func (e *Engine) QueueSnapshot(ctx context.Context, limit int) ([]model.QueuedItem, error) {
	_, span := tracer.Start(ctx, "QueueSnapshot")
	defer span.End()

	if limit <= 0 || limit > e.cnf.Matching.Scan() {
		limit = e.cnf.Matching.Scan()
	}

	var items []model.QueuedItem
	err := e.inTx(ctx, "QueueSnapshot", func(repo database.Repository) error {
		var err error
		items, err = dequeueCandidates(ctx, repo, limit)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return items, nil
}
