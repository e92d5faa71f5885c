package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/reviewloop/reviewloop/model"
)

func (r *repository) CreateItem(ctx context.Context, item *model.Item) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.items (item_id, owner_account_id, name, status, queue_entered_at, requeued_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ItemID, item.OwnerAccountID, item.Name, item.Status, item.QueueEnteredAt, item.RequeuedAt, item.CreatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to create item")
	}
	return nil
}

func (r *repository) GetItem(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{}
	var status string
	var queuedAt, requeuedAt sql.NullTime
	err := r.q.QueryRowContext(ctx, `
		SELECT item_id, owner_account_id, name, status, queue_entered_at, requeued_at, created_at
		FROM reviewloop.items
		WHERE item_id = $1
		FOR UPDATE
	`, id).Scan(&item.ItemID, &item.OwnerAccountID, &item.Name, &status, &queuedAt, &requeuedAt, &item.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "Item", "Failed to retrieve item")
	}
	item.Status = model.ItemStatus(status)
	item.QueueEnteredAt = nullTime(queuedAt)
	item.RequeuedAt = nullTime(requeuedAt)
	return item, nil
}

func (r *repository) UpdateItemStatus(ctx context.Context, id string, status model.ItemStatus, queuedAt *time.Time) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE reviewloop.items
		SET status = $2, queue_entered_at = $3, requeued_at = NULL
		WHERE item_id = $1
	`, id, status, queuedAt)
	if err != nil {
		return wrapDBError(err, "Failed to update item status")
	}
	return expectOneRow(result, "Item")
}

// RequeueItem puts an item back in the queue and marks it so it sorts ahead of fresh entries.
func (r *repository) RequeueItem(ctx context.Context, id string, at time.Time) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE reviewloop.items
		SET status = 'queued', queue_entered_at = $2, requeued_at = $2
		WHERE item_id = $1
	`, id, at)
	if err != nil {
		return wrapDBError(err, "Failed to requeue item")
	}
	return expectOneRow(result, "Item")
}

// ListQueuedItems returns the queued items of one tier. Requeued items come first, most
// recently requeued first, then the rest by oldest queue entry.
func (r *repository) ListQueuedItems(ctx context.Context, tier model.Tier, limit int) ([]model.QueuedItem, error) {
	query := `
		SELECT i.item_id, i.owner_account_id, i.name, i.status, i.queue_entered_at, i.requeued_at, i.created_at, a.tier
		FROM reviewloop.items i
		JOIN reviewloop.accounts a ON a.account_id = i.owner_account_id
		WHERE i.status = 'queued' AND a.tier = $1
		ORDER BY i.requeued_at DESC NULLS LAST, i.queue_entered_at ASC, i.item_id ASC`
	args := []interface{}{tier}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, "Failed to list queued items")
	}
	defer rows.Close()

	items := []model.QueuedItem{}
	for rows.Next() {
		var qi model.QueuedItem
		var status, ownerTier string
		var queuedAt, requeuedAt sql.NullTime
		if err := rows.Scan(&qi.ItemID, &qi.OwnerAccountID, &qi.Name, &status, &queuedAt, &requeuedAt, &qi.CreatedAt, &ownerTier); err != nil {
			return nil, wrapDBError(err, "Failed to scan queued item")
		}
		qi.Status = model.ItemStatus(status)
		qi.QueueEnteredAt = nullTime(queuedAt)
		qi.RequeuedAt = nullTime(requeuedAt)
		qi.OwnerTier = model.Tier(ownerTier)
		items = append(items, qi)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "Error occurred while iterating over queued items")
	}
	return items, nil
}
