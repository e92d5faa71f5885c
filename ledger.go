package reviewloop

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

const (
	defaultLedgerPageSize = 20
	maxLedgerPageSize     = 100
)

// appendEntry writes one immutable ledger row inside the caller's transaction.
func (e *Engine) appendEntry(ctx context.Context, repo database.Repository, accountID string, amount int64, kind model.LedgerKind, description, reference string) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{
		EntryID:     model.GenerateUUIDWithSuffix("led"),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Reference:   reference,
		CreatedAt:   e.clock(),
	}
	if !entry.SignValid() {
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("amount %d is not valid for a %s entry", amount, kind), nil)
	}
	if err := repo.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// spend debits amount after checking the balance. The caller must hold the account row lock
// so that the check and the debit cannot interleave with another spend.
func (e *Engine) spend(ctx context.Context, repo database.Repository, accountID string, amount int64, description, reference string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "spend amount must be positive", nil)
	}
	balance, err := repo.GetBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientCredits,
			fmt.Sprintf("insufficient credits: balance is %d, %d required", balance, amount), nil)
	}
	return e.appendEntry(ctx, repo, accountID, -amount, model.LedgerSpent, description, reference)
}

// GrantCredits adds earned credits to an account, e.g. a sign-up bonus.
func (e *Engine) GrantCredits(ctx context.Context, accountID string, amount int64, description string) (*model.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "GrantCredits")
	defer span.End()

	if amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "amount must be positive", nil)
	}
	if description == "" {
		description = "credit grant"
	}

	var entry *model.LedgerEntry
	err := e.inTx(ctx, "GrantCredits", func(repo database.Repository) error {
		if _, err := repo.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		entry, err = e.appendEntry(ctx, repo, accountID, amount, model.LedgerEarned, description, "")
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Credits granted", trace.WithAttributes(attribute.String("account.id", accountID)))
	e.metrics.LedgerEntry(string(entry.Kind), entry.Amount)
	e.notify(EventCreditsGranted, entry)
	return entry, nil
}

func (e *Engine) GetBalance(ctx context.Context, accountID string) (int64, error) {
	_, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	var balance int64
	err := e.inTx(ctx, "GetBalance", func(repo database.Repository) error {
		if _, err := repo.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		balance, err = repo.GetBalance(ctx, accountID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return balance, nil
}

// GetLedgerEntries pages through an account's entries, newest first.
func (e *Engine) GetLedgerEntries(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, error) {
	_, span := tracer.Start(ctx, "GetLedgerEntries")
	defer span.End()

	if limit <= 0 {
		limit = defaultLedgerPageSize
	}
	if limit > maxLedgerPageSize {
		limit = maxLedgerPageSize
	}
	if offset < 0 {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "offset must not be negative", nil)
	}

	var entries []model.LedgerEntry
	err := e.inTx(ctx, "GetLedgerEntries", func(repo database.Repository) error {
		if _, err := repo.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		entries, err = repo.ListLedgerEntries(ctx, accountID, limit, offset)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return entries, nil
}
