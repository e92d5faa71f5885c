package reviewloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

// transitionError maps lifecycle guard failures onto API errors.
func transitionError(err error) error {
	switch {
	case errors.Is(err, model.ErrNotAssigned),
		errors.Is(err, model.ErrAlreadyInstalled),
		errors.Is(err, model.ErrNotInstalled),
		errors.Is(err, model.ErrReviewTooEarly),
		errors.Is(err, model.ErrNotSubmitted):
		return apierror.NewAPIError(apierror.ErrStateConflict, err.Error(), nil)
	}
	return err
}

// reviewerAssignment loads an assignment and checks that accountID is its reviewer.
func reviewerAssignment(ctx context.Context, repo database.Repository, assignmentID, accountID string) (*model.Assignment, error) {
	assignment, err := repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.ReviewerAccountID != accountID {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "assignment belongs to another reviewer", nil)
	}
	return assignment, nil
}

func (e *Engine) GetAssignment(ctx context.Context, assignmentID string) (*model.AssignmentView, error) {
	_, span := tracer.Start(ctx, "GetAssignment")
	defer span.End()

	var view *model.AssignmentView
	err := e.inTx(ctx, "GetAssignment", func(repo database.Repository) error {
		assignment, err := repo.GetAssignment(ctx, assignmentID)
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
	return view, nil
}

// GetActiveAssignment returns the reviewer's open assignment, or a NOT_FOUND error.
func (e *Engine) GetActiveAssignment(ctx context.Context, accountID string) (*model.AssignmentView, error) {
	var view *model.AssignmentView
	err := e.inTx(ctx, "GetActiveAssignment", func(repo database.Repository) error {
		assignment, err := repo.GetActiveAssignmentForReviewer(ctx, accountID)
		if err != nil {
			return err
		}
		if assignment == nil {
			return apierror.NewAPIError(apierror.ErrNotFound, "no active assignment", nil)
		}
		view = &model.AssignmentView{Assignment: *assignment, Phase: assignment.Phase(e.clock())}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// MarkInstalled starts the install wait. It may be called once per assignment.
func (e *Engine) MarkInstalled(ctx context.Context, assignmentID, accountID string) (*model.AssignmentView, error) {
	ctx, span := tracer.Start(ctx, "MarkInstalled")
	defer span.End()

	var view *model.AssignmentView
	err := e.inTx(ctx, "MarkInstalled", func(repo database.Repository) error {
		assignment, err := reviewerAssignment(ctx, repo, assignmentID, accountID)
		if err != nil {
			return err
		}
		now := e.clock()
		if err := assignment.MarkInstalled(now, e.cnf.Lifecycle.InstallWait()); err != nil {
			return transitionError(err)
		}
		if err := repo.UpdateAssignment(ctx, assignment); err != nil {
			return err
		}
		view = &model.AssignmentView{Assignment: *assignment, Phase: assignment.Phase(now)}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Assignment installed", trace.WithAttributes(attribute.String("assignment.id", assignmentID)))
	return view, nil
}

func (e *Engine) validateReview(review model.ReviewSubmission) error {
	if !review.Confirmed {
		return apierror.NewAPIError(apierror.ErrValidation, "review must be confirmed", nil)
	}
	if review.Rating < 1 || review.Rating > 5 {
		return apierror.NewAPIError(apierror.ErrValidation, "rating must be between 1 and 5", nil)
	}
	min := e.cnf.Lifecycle.ReviewMinLength()
	if utf8.RuneCountInString(strings.TrimSpace(review.Text)) < min {
		return apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("review text must be at least %d characters", min), nil)
	}
	return nil
}

// SubmitReview records the review and approves it in the same transaction: the reviewer earns
// one credit, the reviewer/owner pairing is recorded and the item becomes reviewed.
func (e *Engine) SubmitReview(ctx context.Context, assignmentID, accountID string, review model.ReviewSubmission) (*model.AssignmentView, error) {
	ctx, span := tracer.Start(ctx, "SubmitReview")
	defer span.End()

	if err := e.validateReview(review); err != nil {
		return nil, err
	}
	review.Text = strings.TrimSpace(review.Text)

	var (
		view  *model.AssignmentView
		owner string
	)
	err := e.inTx(ctx, "SubmitReview", func(repo database.Repository) error {
		assignment, err := reviewerAssignment(ctx, repo, assignmentID, accountID)
		if err != nil {
			return err
		}
		now := e.clock()
		if err := assignment.Submit(now, review); err != nil {
			return transitionError(err)
		}
		if err := assignment.Approve(); err != nil {
			return transitionError(err)
		}

		item, err := repo.GetItem(ctx, assignment.ItemID)
		if err != nil {
			return err
		}
		if err := repo.UpdateAssignment(ctx, assignment); err != nil {
			return err
		}
		if err := repo.UpdateItemStatus(ctx, item.ItemID, model.ItemReviewed, item.QueueEnteredAt); err != nil {
			return err
		}
		if _, err := e.appendEntry(ctx, repo, accountID, 1, model.LedgerEarned, "review approved", assignment.AssignmentID); err != nil {
			return err
		}
		if err := repo.CreateRelationship(ctx, &model.ReviewRelationship{
			RelationshipID:    model.GenerateUUIDWithSuffix("rel"),
			ReviewerAccountID: accountID,
			OwnerAccountID:    item.OwnerAccountID,
			ItemID:            item.ItemID,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		if err := repo.UpdateBatchStatus(ctx, assignment.BatchID, model.BatchCompleted); err != nil {
			return err
		}

		view = &model.AssignmentView{Assignment: *assignment, Phase: assignment.Phase(now)}
		owner = item.OwnerAccountID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.AddEvent("Review approved", trace.WithAttributes(attribute.String("assignment.id", assignmentID)))
	e.metrics.LedgerEntry(string(model.LedgerEarned), 1)
	e.notify(EventReviewApproved, AssignmentEvent{Assignment: view.Assignment, OwnerAccountID: owner})
	return view, nil
}
