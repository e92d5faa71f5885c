package model

import (
	"time"

	"github.com/reviewloop/reviewloop/model"
)

type CreateItem struct {
	Name string `json:"name"`
}

type SubmitReview struct {
	Text          string `json:"text"`
	Rating        int    `json:"rating"`
	SubmittedDate string `json:"submitted_date"`
	Confirmed     bool   `json:"confirmed"`
}

type ReportProblem struct {
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
	Cancel      bool   `json:"cancel"`
}

type CancelAssignment struct {
	Reason string `json:"reason"`
}

type RunMatching struct {
	Max int `json:"max"`
}

// ToReviewSubmission leaves the submitted date zero when none was sent. The date has
// already been checked by ValidateSubmitReview.
func (r *SubmitReview) ToReviewSubmission() model.ReviewSubmission {
	var submitted time.Time
	if r.SubmittedDate != "" {
		if parsed, err := time.Parse(time.RFC3339, r.SubmittedDate); err == nil {
			submitted = parsed.UTC()
		}
	}
	return model.ReviewSubmission{
		Text:          r.Text,
		Rating:        r.Rating,
		SubmittedDate: submitted,
		Confirmed:     r.Confirmed,
	}
}

func (p *ReportProblem) ToProblemReportInput() model.ProblemReportInput {
	return model.ProblemReportInput{
		IssueType:   model.IssueType(p.IssueType),
		Description: p.Description,
		Cancel:      p.Cancel,
	}
}
