/*
Copyright 2024 Reviewloop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"errors"
	"time"
)

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentApproved  AssignmentStatus = "approved"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Phase is the externally visible lifecycle position of an assignment, including the
// time-derived states that are not stored.
type Phase string

const (
	PhaseAssigned         Phase = "assigned"
	PhaseInstalledWaiting Phase = "installed_waiting"
	PhaseReadyToReview    Phase = "ready_to_review"
	PhaseSubmitted        Phase = "submitted"
	PhaseApproved         Phase = "approved"
	PhaseCancelled        Phase = "cancelled"
)

type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchCompleted BatchStatus = "completed"
)

var (
	ErrNotAssigned      = errors.New("assignment is no longer active")
	ErrAlreadyInstalled = errors.New("assignment is already marked as installed")
	ErrNotInstalled     = errors.New("item has not been marked as installed")
	ErrReviewTooEarly   = errors.New("review window has not opened yet")
	ErrNotSubmitted     = errors.New("assignment has no submitted review")
)

// AssignmentBatch groups the assignments issued to one reviewer in one matching pass.
type AssignmentBatch struct {
	BatchID           string      `json:"batch_id"`
	ReviewerAccountID string      `json:"reviewer_account_id"`
	Status            BatchStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
}

type Assignment struct {
	AssignmentID      string           `json:"assignment_id"`
	BatchID           string           `json:"batch_id"`
	ItemID            string           `json:"item_id"`
	ReviewerAccountID string           `json:"reviewer_account_id"`
	SequenceNumber    int              `json:"sequence_number"`
	AssignedAt        time.Time        `json:"assigned_at"`
	DueAt             time.Time        `json:"due_at"`
	Status            AssignmentStatus `json:"status"`
	InstalledAt       *time.Time       `json:"installed_at,omitempty"`
	EarliestReviewAt  *time.Time       `json:"earliest_review_at,omitempty"`
	ReviewText        string           `json:"review_text,omitempty"`
	Rating            int              `json:"rating,omitempty"`
	SubmittedDate     *time.Time       `json:"submitted_date,omitempty"`
	SubmittedAt       *time.Time       `json:"submitted_at,omitempty"`
	Notes             string           `json:"notes,omitempty"`
}

// AssignmentView is an assignment with its derived phase.
type AssignmentView struct {
	Assignment
	Phase Phase `json:"phase"`
}

// ReviewSubmission is the reviewer's payload for submitReview. SubmittedDate is the
// client-reported date and is stored for reference only.
type ReviewSubmission struct {
	Text          string    `json:"text"`
	Rating        int       `json:"rating"`
	SubmittedDate time.Time `json:"submitted_date"`
	Confirmed     bool      `json:"confirmed"`
}

// Phase derives the lifecycle phase at now.
func (a *Assignment) Phase(now time.Time) Phase {
	switch a.Status {
	case AssignmentSubmitted:
		return PhaseSubmitted
	case AssignmentApproved:
		return PhaseApproved
	case AssignmentCancelled:
		return PhaseCancelled
	}
	if a.InstalledAt == nil {
		return PhaseAssigned
	}
	if a.IsReadyToReview(now) {
		return PhaseReadyToReview
	}
	return PhaseInstalledWaiting
}

// IsReadyToReview reports whether the install wait has elapsed at now. The gate is inclusive.
func (a *Assignment) IsReadyToReview(now time.Time) bool {
	return a.Status == AssignmentAssigned && a.EarliestReviewAt != nil && !now.Before(*a.EarliestReviewAt)
}

func (a *Assignment) MarkInstalled(now time.Time, wait time.Duration) error {
	if a.Status != AssignmentAssigned {
		return ErrNotAssigned
	}
	if a.InstalledAt != nil {
		return ErrAlreadyInstalled
	}
	earliest := now.Add(wait)
	a.InstalledAt = &now
	a.EarliestReviewAt = &earliest
	return nil
}

// Submit records the review after checking the time gate. It does not validate the
// review content.
func (a *Assignment) Submit(now time.Time, review ReviewSubmission) error {
	if a.Status != AssignmentAssigned {
		return ErrNotAssigned
	}
	if a.InstalledAt == nil {
		return ErrNotInstalled
	}
	if !a.IsReadyToReview(now) {
		return ErrReviewTooEarly
	}
	a.Status = AssignmentSubmitted
	a.ReviewText = review.Text
	a.Rating = review.Rating
	if !review.SubmittedDate.IsZero() {
		submittedDate := review.SubmittedDate
		a.SubmittedDate = &submittedDate
	}
	a.SubmittedAt = &now
	return nil
}

func (a *Assignment) Approve() error {
	if a.Status != AssignmentSubmitted {
		return ErrNotSubmitted
	}
	a.Status = AssignmentApproved
	return nil
}

// Cancel is legal from assigned, installed or not.
func (a *Assignment) Cancel(reason string) error {
	if a.Status != AssignmentAssigned {
		return ErrNotAssigned
	}
	a.Status = AssignmentCancelled
	a.Notes = reason
	return nil
}
