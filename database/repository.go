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

package database

import (
	"context"
	"time"

	"github.com/reviewloop/reviewloop/model"
)

// Store runs units of work. Every function passed to RunInTx executes against a single
// serializable transaction; returning an error rolls back every write made through repo.
type Store interface {
	RunInTx(ctx context.Context, fn func(repo Repository) error) error
	Close() error
}

// Repository groups the persistence operations available inside a unit of work.
type Repository interface {
	account      // Interface for account-related operations
	item         // Interface for item and queue operations
	assignment   // Interface for batch and assignment operations
	relationship // Interface for reviewer/owner relationships and problem reports
	ledger       // Interface for credit ledger operations
}

// account defines methods for reading accounts and maintaining their submission cycle.
type account interface {
	CreateAccount(ctx context.Context, account *model.Account) error                         // Inserts a new account
	GetAccount(ctx context.Context, id string) (*model.Account, error)                       // Loads and locks an account
	UpdateAccountCycle(ctx context.Context, id string, count int, lastReset time.Time) error // Persists the submission counter
	ListQualifiedAccountIDs(ctx context.Context) ([]string, error)                           // Qualified reviewer ids, ordered
}

// item defines methods for items and the submission queue.
type item interface {
	CreateItem(ctx context.Context, item *model.Item) error                                              // Inserts a new item
	GetItem(ctx context.Context, id string) (*model.Item, error)                                         // Loads and locks an item
	UpdateItemStatus(ctx context.Context, id string, status model.ItemStatus, queuedAt *time.Time) error // Moves an item through its lifecycle and clears any requeue marker
	RequeueItem(ctx context.Context, id string, at time.Time) error                                      // Queues an item again at the front of its tier
	ListQueuedItems(ctx context.Context, tier model.Tier, limit int) ([]model.QueuedItem, error)         // Queued items of a tier, requeued first then FIFO; limit <= 0 means all
}

// assignment defines methods for batches and assignments.
type assignment interface {
	CreateBatch(ctx context.Context, batch *model.AssignmentBatch) error                              // Inserts a batch
	UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error                 // Completes a batch
	CreateAssignment(ctx context.Context, assignment *model.Assignment) error                         // Inserts an assignment
	GetAssignment(ctx context.Context, id string) (*model.Assignment, error)                          // Loads and locks an assignment
	UpdateAssignment(ctx context.Context, assignment *model.Assignment) error                         // Persists lifecycle fields
	ListBusyReviewerIDs(ctx context.Context) ([]string, error)                                        // Reviewers holding an assigned assignment
	GetActiveAssignmentForReviewer(ctx context.Context, reviewerID string) (*model.Assignment, error) // The reviewer's assigned assignment or nil
	CountReviewerAssignments(ctx context.Context, reviewerID string) (int, error)                     // Assignments ever issued to a reviewer
	HasApprovedReview(ctx context.Context, reviewerID string) (bool, error)                           // Whether the account completed a review
}

// relationship defines methods for review relationships and problem reports.
type relationship interface {
	CreateRelationship(ctx context.Context, rel *model.ReviewRelationship) error // Appends a relationship
	ListReviewersForOwner(ctx context.Context, ownerID string) ([]string, error) // Reviewers that already reviewed an owner
	CreateProblemReport(ctx context.Context, report *model.ProblemReport) error  // Stores a problem report
}

// ledger defines methods for the append-only credit ledger.
type ledger interface {
	AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error                                   // Appends an entry
	GetBalance(ctx context.Context, accountID string) (int64, error)                                         // Sum of an account's entries
	ListLedgerEntries(ctx context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, error) // Entries, newest first
}
