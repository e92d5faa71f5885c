package reviewloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

// ProblemEvent is the payload of assignment.problem_reported.
type ProblemEvent struct {
	Report         model.ProblemReport `json:"report"`
	ItemID         string              `json:"item_id"`
	OwnerAccountID string              `json:"owner_account_id"`
}

// cancelAssignment cancels an open assignment and puts its item back at the front of its
// tier's queue.
func (e *Engine) cancelAssignment(ctx context.Context, repo database.Repository, assignment *model.Assignment, reason string) (*model.Item, error) {
	if err := assignment.Cancel(reason); err != nil {
		return nil, transitionError(err)
	}
	item, err := repo.GetItem(ctx, assignment.ItemID)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	now := e.clock()
	if err := repo.RequeueItem(ctx, item.ItemID, now); err != nil {
		return nil, err
	}
	if err := repo.UpdateBatchStatus(ctx, assignment.BatchID, model.BatchCompleted); err != nil {
		return nil, err
	}
	item.Status = model.ItemQueued
	item.QueueEnteredAt = &now
	item.RequeuedAt = &now
	return item, nil
}

// AdminCancelAssignment cancels an open assignment and requeues its item.
func (e *Engine) AdminCancelAssignment(ctx context.Context, assignmentID, reason string) (*model.AssignmentView, error) {
	ctx, span := tracer.Start(ctx, "AdminCancelAssignment")
	defer span.End()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by admin"
	}

	var (
		view *model.AssignmentView
		item *model.Item
	)
	err := e.inTx(ctx, "AdminCancelAssignment", func(repo database.Repository) error {
		assignment, err := repo.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		item, err = e.cancelAssignment(ctx, repo, assignment, reason)
		if err != nil {
			return err
		}
		view = &model.AssignmentView{Assignment: *assignment, Phase: assignment.Phase(e.clock())}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.notify(EventAssignmentCancelled, AssignmentEvent{Assignment: view.Assignment, OwnerAccountID: item.OwnerAccountID})
	return view, nil
}

// ReportProblem stores a reviewer's problem report. With Cancel set the assignment is
// cancelled and the item requeued in the same transaction.
func (e *Engine) ReportProblem(ctx context.Context, assignmentID, accountID string, input model.ProblemReportInput) (*model.ProblemReport, error) {
	ctx, span := tracer.Start(ctx, "ReportProblem")
	defer span.End()

	if !validIssueType(input.IssueType) {
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("unknown issue type %q", input.IssueType), nil)
	}
	input.Description = strings.TrimSpace(input.Description)

	var (
		report *model.ProblemReport
		item   *model.Item
	)
	err := e.inTx(ctx, "ReportProblem", func(repo database.Repository) error {
		assignment, err := reviewerAssignment(ctx, repo, assignmentID, accountID)
		if err != nil {
			return err
		}
		if assignment.Status != model.AssignmentAssigned {
			return apierror.NewAPIError(apierror.ErrStateConflict, model.ErrNotAssigned.Error(), nil)
		}

		report = &model.ProblemReport{
			ReportID:          model.GenerateUUIDWithSuffix("prb"),
			AssignmentID:      assignmentID,
			ReporterAccountID: accountID,
			IssueType:         input.IssueType,
			Description:       input.Description,
			Cancelled:         input.Cancel,
			CreatedAt:         e.clock(),
		}
		if err := repo.CreateProblemReport(ctx, report); err != nil {
			return err
		}

		if input.Cancel {
			item, err = e.cancelAssignment(ctx, repo, assignment, fmt.Sprintf("%s: %s", input.IssueType, input.Description))
			return err
		}
		item, err = repo.GetItem(ctx, assignment.ItemID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.notify(EventProblemReported, ProblemEvent{Report: *report, ItemID: item.ItemID, OwnerAccountID: item.OwnerAccountID})
	return report, nil
}

func validIssueType(t model.IssueType) bool {
	for _, known := range model.IssueTypes {
		if known == t {
			return true
		}
	}
	return false
}

// AdminRemoveFromQueue withdraws a queued item: the submission credit is refunded, the
// standard-tier counter is decremented and the item returns to unlisted.
func (e *Engine) AdminRemoveFromQueue(ctx context.Context, itemID string) (*model.Item, error) {
	ctx, span := tracer.Start(ctx, "AdminRemoveFromQueue")
	defer span.End()

	var item *model.Item
	err := e.inTx(ctx, "AdminRemoveFromQueue", func(repo database.Repository) error {
		queued, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if queued.Status != model.ItemQueued {
			return apierror.NewAPIError(apierror.ErrStateConflict, fmt.Sprintf("item is %s, only queued items can be removed", queued.Status), nil)
		}
		owner, err := repo.GetAccount(ctx, queued.OwnerAccountID)
		if err != nil {
			return err
		}

		if _, err := e.appendEntry(ctx, repo, owner.AccountID, 1, model.LedgerRefunded, "removed from queue", queued.ItemID); err != nil {
			return err
		}
		if err := e.releaseSubmission(ctx, repo, owner); err != nil {
			return err
		}
		if err := repo.UpdateItemStatus(ctx, queued.ItemID, model.ItemUnlisted, nil); err != nil {
			return err
		}

		queued.Status = model.ItemUnlisted
		queued.QueueEnteredAt = nil
		item = queued
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.metrics.LedgerEntry(string(model.LedgerRefunded), 1)
	e.notify(EventItemRemoved, item)
	return item, nil
}
