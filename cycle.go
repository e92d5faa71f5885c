package reviewloop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

// consumeSubmission counts one standard-tier submission against the rolling cycle and
// persists the counter.
func (e *Engine) consumeSubmission(ctx context.Context, repo database.Repository, account *model.Account) error {
	now := e.clock()
	limit := e.cnf.Cycle.Cap()
	if err := account.ConsumeSubmission(now, e.cnf.Cycle.Length(), limit); err != nil {
		if errors.Is(err, model.ErrCapReached) {
			_, end := model.CycleWindow(account.LastResetDate, now, e.cnf.Cycle.Length())
			return apierror.NewAPIError(apierror.ErrCapReached,
				fmt.Sprintf("submission cap of %d reached for this cycle, resets at %s", limit, end.Format("2006-01-02")), nil)
		}
		return err
	}
	if account.IsPriority() {
		return nil
	}
	return repo.UpdateAccountCycle(ctx, account.AccountID, account.MonthlySubmissionCount, account.LastResetDate)
}

// releaseSubmission gives back one counted submission, used when a queued item is withdrawn.
func (e *Engine) releaseSubmission(ctx context.Context, repo database.Repository, account *model.Account) error {
	if !account.ReleaseSubmission() {
		return nil
	}
	return repo.UpdateAccountCycle(ctx, account.AccountID, account.MonthlySubmissionCount, account.LastResetDate)
}

// CreateAccount seeds an account. The cycle is anchored at creation time.
func (e *Engine) CreateAccount(ctx context.Context, account model.Account) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "CreateAccount")
	defer span.End()

	account.Name = strings.TrimSpace(account.Name)
	if account.Tier == "" {
		account.Tier = model.TierStandard
	}
	if !account.Tier.Valid() {
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("unknown tier %q", account.Tier), nil)
	}
	if account.AccountID == "" {
		account.AccountID = model.GenerateUUIDWithSuffix("acc")
	}
	account.CreatedAt = e.clock()
	account.LastResetDate = account.CreatedAt
	account.MonthlySubmissionCount = 0

	err := e.inTx(ctx, "CreateAccount", func(repo database.Repository) error {
		return repo.CreateAccount(ctx, &account)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &account, nil
}

// GetAccountSummary reports the balance and the current cycle usage. The rolling reset is
// applied to the view only; it is persisted by the next submission.
func (e *Engine) GetAccountSummary(ctx context.Context, accountID string) (*model.AccountSummary, error) {
	_, span := tracer.Start(ctx, "GetAccountSummary")
	defer span.End()

	var summary *model.AccountSummary
	err := e.inTx(ctx, "GetAccountSummary", func(repo database.Repository) error {
		account, err := repo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		balance, err := repo.GetBalance(ctx, accountID)
		if err != nil {
			return err
		}

		now := e.clock()
		length := e.cnf.Cycle.Length()
		view := *account
		view.ResetCycleIfElapsed(now, length)
		start, end := model.CycleWindow(view.CreatedAt, now, length)

		summary = &model.AccountSummary{Account: *account, Balance: balance, CycleStart: start, CycleEnd: end}
		if !account.IsPriority() {
			remaining := e.cnf.Cycle.Cap() - view.MonthlySubmissionCount
			if remaining < 0 {
				remaining = 0
			}
			summary.SubmissionsRemaining = &remaining
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return summary, nil
}
