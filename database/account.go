package database

import (
	"context"
	"time"

	"github.com/reviewloop/reviewloop/model"
)

func (r *repository) CreateAccount(ctx context.Context, account *model.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.accounts (account_id, name, tier, qualified, monthly_submission_count, last_reset_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.AccountID, account.Name, account.Tier, account.Qualified, account.MonthlySubmissionCount, account.LastResetDate, account.CreatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to create account")
	}
	return nil
}

// GetAccount locks the account row so that balance checks and cycle updates for the same
// account are serialized.
func (r *repository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	account := &model.Account{}
	var tier string
	err := r.q.QueryRowContext(ctx, `
		SELECT account_id, name, tier, qualified, monthly_submission_count, last_reset_date, created_at
		FROM reviewloop.accounts
		WHERE account_id = $1
		FOR UPDATE
	`, id).Scan(&account.AccountID, &account.Name, &tier, &account.Qualified,
		&account.MonthlySubmissionCount, &account.LastResetDate, &account.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "Account", "Failed to retrieve account")
	}
	account.Tier = model.Tier(tier)
	return account, nil
}

func (r *repository) UpdateAccountCycle(ctx context.Context, id string, count int, lastReset time.Time) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE reviewloop.accounts
		SET monthly_submission_count = $2, last_reset_date = $3
		WHERE account_id = $1
	`, id, count, lastReset)
	if err != nil {
		return wrapDBError(err, "Failed to update account cycle")
	}
	return expectOneRow(result, "Account")
}

func (r *repository) ListQualifiedAccountIDs(ctx context.Context) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT account_id FROM reviewloop.accounts
		WHERE qualified = TRUE
		ORDER BY account_id
	`, "Failed to list qualified accounts")
}

func (r *repository) queryIDs(ctx context.Context, query, message string, args ...interface{}) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, message)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError(err, message)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, message)
	}
	return ids, nil
}
