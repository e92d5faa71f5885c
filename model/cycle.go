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

var ErrCapReached = errors.New("submission cap reached for the current cycle")

// CycleWindow returns the rolling cycle containing now for an account created at anchor.
// Cycles are whole multiples of length counted from anchor in days.
func CycleWindow(anchor, now time.Time, length time.Duration) (start, end time.Time) {
	if !now.After(anchor) || length <= 0 {
		return anchor, anchor.Add(length)
	}
	day := 24 * time.Hour
	daysSince := int64(now.Sub(anchor) / day)
	cycleDays := int64(length / day)
	if cycleDays <= 0 {
		cycleDays = 1
	}
	elapsed := daysSince / cycleDays
	start = anchor.Add(time.Duration(elapsed*cycleDays) * day)
	return start, start.Add(length)
}

// ResetCycleIfElapsed zeroes the submission counter once a full cycle has passed since the
// last reset. It reports whether a reset happened.
func (a *Account) ResetCycleIfElapsed(now time.Time, length time.Duration) bool {
	last := a.LastResetDate
	if last.IsZero() {
		last = a.CreatedAt
	}
	if now.Sub(last) < length {
		return false
	}
	a.MonthlySubmissionCount = 0
	a.LastResetDate = now
	return true
}

// ConsumeSubmission applies the rolling reset and the free-tier cap, then counts one
// submission. Priority accounts are uncapped and never counted.
func (a *Account) ConsumeSubmission(now time.Time, length time.Duration, limit int) error {
	if a.IsPriority() {
		return nil
	}
	a.ResetCycleIfElapsed(now, length)
	if a.MonthlySubmissionCount >= limit {
		return ErrCapReached
	}
	a.MonthlySubmissionCount++
	return nil
}

// ReleaseSubmission undoes one counted submission for a standard account.
func (a *Account) ReleaseSubmission() bool {
	if a.IsPriority() || a.MonthlySubmissionCount == 0 {
		return false
	}
	a.MonthlySubmissionCount--
	return true
}
