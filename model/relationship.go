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

import "time"

// ReviewRelationship records that a reviewer has reviewed an owner. At most one exists per
// (reviewer, owner) pair and rows are never removed.
type ReviewRelationship struct {
	RelationshipID    string    `json:"relationship_id"`
	ReviewerAccountID string    `json:"reviewer_account_id"`
	OwnerAccountID    string    `json:"owner_account_id"`
	ItemID            string    `json:"item_id"`
	CreatedAt         time.Time `json:"created_at"`
}

type IssueType string

const (
	IssueItemUnavailable IssueType = "item_unavailable"
	IssueInstallFailed   IssueType = "install_failed"
	IssueNotAsDescribed  IssueType = "not_as_described"
	IssueOther           IssueType = "other"
)

var IssueTypes = []interface{}{IssueItemUnavailable, IssueInstallFailed, IssueNotAsDescribed, IssueOther}

// ProblemReport is a reviewer's report against an assignment.
type ProblemReport struct {
	ReportID          string    `json:"report_id"`
	AssignmentID      string    `json:"assignment_id"`
	ReporterAccountID string    `json:"reporter_account_id"`
	IssueType         IssueType `json:"issue_type"`
	Description       string    `json:"description"`
	Cancelled         bool      `json:"cancelled"`
	CreatedAt         time.Time `json:"created_at"`
}

type ProblemReportInput struct {
	IssueType   IssueType `json:"issue_type"`
	Description string    `json:"description"`
	Cancel      bool      `json:"cancel"`
}
