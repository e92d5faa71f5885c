package database

import (
	"context"
	"database/sql"

	"github.com/reviewloop/reviewloop/model"
)

const assignmentColumns = `assignment_id, batch_id, item_id, reviewer_account_id, sequence_number, assigned_at, due_at,
	status, installed_at, earliest_review_at, review_text, rating, submitted_date, submitted_at, notes`

func (r *repository) CreateBatch(ctx context.Context, batch *model.AssignmentBatch) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.assignment_batches (batch_id, reviewer_account_id, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, batch.BatchID, batch.ReviewerAccountID, batch.Status, batch.CreatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to create assignment batch")
	}
	return nil
}

func (r *repository) UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE reviewloop.assignment_batches SET status = $2 WHERE batch_id = $1
	`, id, status)
	if err != nil {
		return wrapDBError(err, "Failed to update assignment batch")
	}
	return expectOneRow(result, "Assignment batch")
}

func (r *repository) CreateAssignment(ctx context.Context, a *model.Assignment) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, a.AssignmentID, a.BatchID, a.ItemID, a.ReviewerAccountID, a.SequenceNumber, a.AssignedAt, a.DueAt,
		a.Status, a.InstalledAt, a.EarliestReviewAt, a.ReviewText, a.Rating, a.SubmittedDate, a.SubmittedAt, a.Notes)
	if err != nil {
		return wrapDBError(err, "Failed to create assignment")
	}
	return nil
}

func (r *repository) GetAssignment(ctx context.Context, id string) (*model.Assignment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM reviewloop.assignments
		WHERE assignment_id = $1
		FOR UPDATE
	`, id)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, notFoundOr(err, "Assignment", "Failed to retrieve assignment")
	}
	return a, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, a *model.Assignment) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE reviewloop.assignments
		SET status = $2, installed_at = $3, earliest_review_at = $4, review_text = $5, rating = $6,
			submitted_date = $7, submitted_at = $8, notes = $9
		WHERE assignment_id = $1
	`, a.AssignmentID, a.Status, a.InstalledAt, a.EarliestReviewAt, a.ReviewText, a.Rating,
		a.SubmittedDate, a.SubmittedAt, a.Notes)
	if err != nil {
		return wrapDBError(err, "Failed to update assignment")
	}
	return expectOneRow(result, "Assignment")
}

func (r *repository) ListBusyReviewerIDs(ctx context.Context) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT DISTINCT reviewer_account_id FROM reviewloop.assignments
		WHERE status = 'assigned'
		ORDER BY reviewer_account_id
	`, "Failed to list busy reviewers")
}

func (r *repository) GetActiveAssignmentForReviewer(ctx context.Context, reviewerID string) (*model.Assignment, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM reviewloop.assignments
		WHERE reviewer_account_id = $1 AND status = 'assigned'
		LIMIT 1
	`, reviewerID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError(err, "Failed to retrieve active assignment")
	}
	return a, nil
}

func (r *repository) CountReviewerAssignments(ctx context.Context, reviewerID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reviewloop.assignments WHERE reviewer_account_id = $1
	`, reviewerID).Scan(&count)
	if err != nil {
		return 0, wrapDBError(err, "Failed to count reviewer assignments")
	}
	return count, nil
}

func (r *repository) HasApprovedReview(ctx context.Context, reviewerID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reviewloop.assignments
			WHERE reviewer_account_id = $1 AND status = 'approved'
		)
	`, reviewerID).Scan(&exists)
	if err != nil {
		return false, wrapDBError(err, "Failed to check review history")
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(row rowScanner) (*model.Assignment, error) {
	a := &model.Assignment{}
	var status string
	var installedAt, earliestReviewAt, submittedDate, submittedAt sql.NullTime
	err := row.Scan(&a.AssignmentID, &a.BatchID, &a.ItemID, &a.ReviewerAccountID, &a.SequenceNumber,
		&a.AssignedAt, &a.DueAt, &status, &installedAt, &earliestReviewAt, &a.ReviewText, &a.Rating,
		&submittedDate, &submittedAt, &a.Notes)
	if err != nil {
		return nil, err
	}
	a.Status = model.AssignmentStatus(status)
	a.InstalledAt = nullTime(installedAt)
	a.EarliestReviewAt = nullTime(earliestReviewAt)
	a.SubmittedDate = nullTime(submittedDate)
	a.SubmittedAt = nullTime(submittedAt)
	return a, nil
}
