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

// Account is the engine's view of a platform identity. Tier and Qualified are owned by the
// profile subsystem; the engine only mutates the submission cycle counters.
type Account struct {
	AccountID              string    `json:"account_id"`
	Name                   string    `json:"name"`
	Tier                   Tier      `json:"tier"`
	Qualified              bool      `json:"qualified"`
	MonthlySubmissionCount int       `json:"monthly_submission_count"`
	LastResetDate          time.Time `json:"last_reset_date"`
	CreatedAt              time.Time `json:"created_at"`
}

func (a *Account) IsPriority() bool {
	return a.Tier == TierPriority
}

// AccountSummary is an account together with its derived balance and current cycle window.
type AccountSummary struct {
	Account
	Balance              int64     `json:"balance"`
	CycleStart           time.Time `json:"cycle_start"`
	CycleEnd             time.Time `json:"cycle_end"`
	SubmissionsRemaining *int      `json:"submissions_remaining,omitempty"`
}
