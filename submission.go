package reviewloop

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

// ItemEvent is the payload of item.queued.
type ItemEvent struct {
	Item  model.Item        `json:"item"`
	Entry model.LedgerEntry `json:"ledger_entry"`
}

// CreateItem seeds an unlisted item for ownerID.
func (e *Engine) CreateItem(ctx context.Context, ownerID, name string) (*model.Item, error) {
	ctx, span := tracer.Start(ctx, "CreateItem")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "item name is required", nil)
	}

	item := &model.Item{
		ItemID:         model.GenerateUUIDWithSuffix("itm"),
		OwnerAccountID: ownerID,
		Name:           name,
		Status:         model.ItemUnlisted,
		CreatedAt:      e.clock(),
	}
	err := e.inTx(ctx, "CreateItem", func(repo database.Repository) error {
		if _, err := repo.GetAccount(ctx, ownerID); err != nil {
			return err
		}
		return repo.CreateItem(ctx, item)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return item, nil
}

func (e *Engine) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	var item *model.Item
	err := e.inTx(ctx, "GetItem", func(repo database.Repository) error {
		var err error
		item, err = repo.GetItem(ctx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SubmitItemToQueue puts an item in the queue. The owner must have completed at least one
// approved review, be within the cycle cap and pay one credit. All checks and writes share
// one transaction.
func (e *Engine) SubmitItemToQueue(ctx context.Context, accountID, itemID string) (*model.Item, error) {
	ctx, span := tracer.Start(ctx, "SubmitItemToQueue")
	defer span.End()

	var (
		item  *model.Item
		entry *model.LedgerEntry
	)
	err := e.inTx(ctx, "SubmitItemToQueue", func(repo database.Repository) error {
		account, err := repo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		current, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if current.OwnerAccountID != accountID {
			return apierror.NewAPIError(apierror.ErrForbidden, "item belongs to another account", nil)
		}
		if !current.CanEnterQueue() {
			return apierror.NewAPIError(apierror.ErrStateConflict, "item is already "+string(current.Status), nil)
		}

		reviewed, err := repo.HasApprovedReview(ctx, accountID)
		if err != nil {
			return err
		}
		if !reviewed {
			return apierror.NewAPIError(apierror.ErrStateConflict, "complete an approved review before submitting items", nil)
		}

		if err := e.consumeSubmission(ctx, repo, account); err != nil {
			return err
		}
		entry, err = e.spend(ctx, repo, accountID, 1, "queue submission", current.ItemID)
		if err != nil {
			return err
		}

		now := e.clock()
		if err := repo.UpdateItemStatus(ctx, current.ItemID, model.ItemQueued, &now); err != nil {
			return err
		}
		current.Status = model.ItemQueued
		current.QueueEnteredAt = &now
		item = current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Item queued", trace.WithAttributes(attribute.String("item.id", itemID)))
	e.metrics.LedgerEntry(string(entry.Kind), entry.Amount)
	e.notify(EventItemQueued, ItemEvent{Item: *item, Entry: *entry})
	return item, nil
}
