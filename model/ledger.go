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

type LedgerKind string

const (
	LedgerEarned   LedgerKind = "earned"
	LedgerSpent    LedgerKind = "spent"
	LedgerRefunded LedgerKind = "refunded"
)

// LedgerEntry is an immutable credit movement. Earned and refunded entries are positive,
// spent entries are negative.
type LedgerEntry struct {
	EntryID     string     `json:"entry_id"`
	AccountID   string     `json:"account_id"`
	Amount      int64      `json:"amount"`
	Kind        LedgerKind `json:"kind"`
	Description string     `json:"description"`
	Reference   string     `json:"reference,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SignValid reports whether the amount sign matches the entry kind.
func (e *LedgerEntry) SignValid() bool {
	switch e.Kind {
	case LedgerEarned, LedgerRefunded:
		return e.Amount > 0
	case LedgerSpent:
		return e.Amount < 0
	}
	return false
}

// Balance sums a slice of entries.
func Balance(entries []LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}
