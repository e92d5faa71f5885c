package database

import (
	"context"

	"github.com/reviewloop/reviewloop/model"
)

func (r *repository) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.ledger_entries (entry_id, account_id, amount, kind, description, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.EntryID, entry.AccountID, entry.Amount, entry.Kind, entry.Description, entry.Reference, entry.CreatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to append ledger entry")
	}
	return nil
}

// GetBalance derives the balance from the ledger; no running total is stored.
func (r *repository) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM reviewloop.ledger_entries WHERE account_id = $1
	`, accountID).Scan(&balance)
	if err != nil {
		return 0, wrapDBError(err, "Failed to compute balance")
	}
	return balance, nil
}

func (r *repository) ListLedgerEntries(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT entry_id, account_id, amount, kind, description, reference, created_at
		FROM reviewloop.ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, entry_id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, wrapDBError(err, "Failed to list ledger entries")
	}
	defer rows.Close()

	entries := []model.LedgerEntry{}
	for rows.Next() {
		var e model.LedgerEntry
		var kind string
		if err := rows.Scan(&e.EntryID, &e.AccountID, &e.Amount, &kind, &e.Description, &e.Reference, &e.CreatedAt); err != nil {
			return nil, wrapDBError(err, "Failed to scan ledger entry")
		}
		e.Kind = model.LedgerKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "Error occurred while iterating over ledger entries")
	}
	return entries, nil
}
