package database

import (
	"context"

	"github.com/reviewloop/reviewloop/model"
)

func (r *repository) CreateRelationship(ctx context.Context, rel *model.ReviewRelationship) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.review_relationships (relationship_id, reviewer_account_id, owner_account_id, item_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rel.RelationshipID, rel.ReviewerAccountID, rel.OwnerAccountID, rel.ItemID, rel.CreatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to record review relationship")
	}
	return nil
}

func (r *repository) ListReviewersForOwner(ctx context.Context, ownerID string) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT reviewer_account_id FROM reviewloop.review_relationships
		WHERE owner_account_id = $1
		ORDER BY reviewer_account_id
	`, "Failed to list reviewers for owner", ownerID)
}

func (r *repository) CreateProblemReport(ctx context.Context, report *model.ProblemReport) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviewloop.problem_reports (report_id, assignment_id, reporter_account_id, issue_type, description, cancelled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, report.ReportID, report.AssignmentID, report.ReporterAccountID, report.IssueType, report.Description, report.Cancelled, report.CreatedAt)
	if err != nil {
		return wrapDBError(err, "Failed to store problem report")
	}
	return nil
}
