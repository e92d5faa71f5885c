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

// Package memory provides an in-process Store used by tests and by servers started with a
// memory:// data source. Transactions are serialized and run against a private copy of the
// state that is swapped in only on success.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

type state struct {
	accounts      map[string]model.Account
	items         map[string]model.Item
	batches       map[string]model.AssignmentBatch
	assignments   map[string]model.Assignment
	relationships map[string]model.ReviewRelationship
	reports       map[string]model.ProblemReport
	ledger        []model.LedgerEntry
}

func newState() *state {
	return &state{
		accounts:      map[string]model.Account{},
		items:         map[string]model.Item{},
		batches:       map[string]model.AssignmentBatch{},
		assignments:   map[string]model.Assignment{},
		relationships: map[string]model.ReviewRelationship{},
		reports:       map[string]model.ProblemReport{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.relationships {
		c.relationships[k] = v
	}
	for k, v := range s.reports {
		c.reports[k] = v
	}
	c.ledger = append([]model.LedgerEntry(nil), s.ledger...)
	return c
}

// Store is a database.Store kept entirely in memory.
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string]error
	closed bool
}

func New() *Store {
	return &Store{state: newState(), faults: map[string]error{}}
}

// InjectFault makes the next call to the named repository method fail with err.
func (s *Store) InjectFault(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) RunInTx(ctx context.Context, fn func(repo database.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apierror.NewAPIError(apierror.ErrDependency, "Store is closed", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &repo{st: s.state.clone(), store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.st
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// repo is only used while Store.mu is held.
type repo struct {
	st    *state
	store *Store
}

func (r *repo) fault(op string) error {
	if err, ok := r.store.faults[op]; ok {
		delete(r.store.faults, op)
		return err
	}
	return nil
}

func notFound(entity string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, entity+" not found", nil)
}

func conflict(message string) error {
	return apierror.NewAPIError(apierror.ErrConcurrencyConflict, message, nil)
}

func (r *repo) CreateAccount(_ context.Context, account *model.Account) error {
	if err := r.fault("CreateAccount"); err != nil {
		return err
	}
	if _, ok := r.st.accounts[account.AccountID]; ok {
		return conflict("account already exists")
	}
	r.st.accounts[account.AccountID] = *account
	return nil
}

func (r *repo) GetAccount(_ context.Context, id string) (*model.Account, error) {
	if err := r.fault("GetAccount"); err != nil {
		return nil, err
	}
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, notFound("Account")
	}
	return &a, nil
}

func (r *repo) UpdateAccountCycle(_ context.Context, id string, count int, lastReset time.Time) error {
	if err := r.fault("UpdateAccountCycle"); err != nil {
		return err
	}
	a, ok := r.st.accounts[id]
	if !ok {
		return notFound("Account")
	}
	a.MonthlySubmissionCount = count
	a.LastResetDate = lastReset
	r.st.accounts[id] = a
	return nil
}

func (r *repo) ListQualifiedAccountIDs(_ context.Context) ([]string, error) {
	if err := r.fault("ListQualifiedAccountIDs"); err != nil {
		return nil, err
	}
	ids := []string{}
	for id, a := range r.st.accounts {
		if a.Qualified {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *repo) CreateItem(_ context.Context, item *model.Item) error {
	if err := r.fault("CreateItem"); err != nil {
		return err
	}
	if _, ok := r.st.accounts[item.OwnerAccountID]; !ok {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "item owner does not exist", nil)
	}
	if _, ok := r.st.items[item.ItemID]; ok {
		return conflict("item already exists")
	}
	r.st.items[item.ItemID] = *item
	return nil
}

func (r *repo) GetItem(_ context.Context, id string) (*model.Item, error) {
	if err := r.fault("GetItem"); err != nil {
		return nil, err
	}
	i, ok := r.st.items[id]
	if !ok {
		return nil, notFound("Item")
	}
	return &i, nil
}

func (r *repo) UpdateItemStatus(_ context.Context, id string, status model.ItemStatus, queuedAt *time.Time) error {
	if err := r.fault("UpdateItemStatus"); err != nil {
		return err
	}
	i, ok := r.st.items[id]
	if !ok {
		return notFound("Item")
	}
	i.Status = status
	i.QueueEnteredAt = copyTime(queuedAt)
	i.RequeuedAt = nil
	r.st.items[id] = i
	return nil
}

func (r *repo) RequeueItem(_ context.Context, id string, at time.Time) error {
	if err := r.fault("RequeueItem"); err != nil {
		return err
	}
	i, ok := r.st.items[id]
	if !ok {
		return notFound("Item")
	}
	i.Status = model.ItemQueued
	i.QueueEnteredAt = copyTime(&at)
	i.RequeuedAt = copyTime(&at)
	r.st.items[id] = i
	return nil
}

func (r *repo) ListQueuedItems(_ context.Context, tier model.Tier, limit int) ([]model.QueuedItem, error) {
	if err := r.fault("ListQueuedItems"); err != nil {
		return nil, err
	}
	items := []model.QueuedItem{}
	for _, i := range r.st.items {
		if i.Status != model.ItemQueued {
			continue
		}
		owner := r.st.accounts[i.OwnerAccountID]
		if owner.Tier != tier {
			continue
		}
		items = append(items, model.QueuedItem{Item: i, OwnerTier: owner.Tier})
	}
	sort.Slice(items, func(a, b int) bool {
		ra, rb := items[a].RequeuedAt, items[b].RequeuedAt
		switch {
		case ra != nil && rb == nil:
			return true
		case ra == nil && rb != nil:
			return false
		case ra != nil && !ra.Equal(*rb):
			return ra.After(*rb)
		}
		ta, tb := queuedTime(items[a].Item), queuedTime(items[b].Item)
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return items[a].ItemID < items[b].ItemID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *repo) CreateBatch(_ context.Context, batch *model.AssignmentBatch) error {
	if err := r.fault("CreateBatch"); err != nil {
		return err
	}
	r.st.batches[batch.BatchID] = *batch
	return nil
}

func (r *repo) UpdateBatchStatus(_ context.Context, id string, status model.BatchStatus) error {
	if err := r.fault("UpdateBatchStatus"); err != nil {
		return err
	}
	b, ok := r.st.batches[id]
	if !ok {
		return notFound("Assignment batch")
	}
	b.Status = status
	r.st.batches[id] = b
	return nil
}

func (r *repo) CreateAssignment(_ context.Context, a *model.Assignment) error {
	if err := r.fault("CreateAssignment"); err != nil {
		return err
	}
	if a.Status == model.AssignmentAssigned {
		for _, existing := range r.st.assignments {
			if existing.Status != model.AssignmentAssigned {
				continue
			}
			if existing.ReviewerAccountID == a.ReviewerAccountID {
				return conflict("reviewer already holds an active assignment")
			}
			if existing.ItemID == a.ItemID {
				return conflict("item already has an active assignment")
			}
		}
	}
	r.st.assignments[a.AssignmentID] = *a
	return nil
}

func (r *repo) GetAssignment(_ context.Context, id string) (*model.Assignment, error) {
	if err := r.fault("GetAssignment"); err != nil {
		return nil, err
	}
	a, ok := r.st.assignments[id]
	if !ok {
		return nil, notFound("Assignment")
	}
	return &a, nil
}

func (r *repo) UpdateAssignment(_ context.Context, a *model.Assignment) error {
	if err := r.fault("UpdateAssignment"); err != nil {
		return err
	}
	if _, ok := r.st.assignments[a.AssignmentID]; !ok {
		return notFound("Assignment")
	}
	r.st.assignments[a.AssignmentID] = *a
	return nil
}

func (r *repo) ListBusyReviewerIDs(_ context.Context) ([]string, error) {
	if err := r.fault("ListBusyReviewerIDs"); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	ids := []string{}
	for _, a := range r.st.assignments {
		if a.Status != model.AssignmentAssigned {
			continue
		}
		if _, ok := seen[a.ReviewerAccountID]; ok {
			continue
		}
		seen[a.ReviewerAccountID] = struct{}{}
		ids = append(ids, a.ReviewerAccountID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *repo) GetActiveAssignmentForReviewer(_ context.Context, reviewerID string) (*model.Assignment, error) {
	if err := r.fault("GetActiveAssignmentForReviewer"); err != nil {
		return nil, err
	}
	for _, a := range r.st.assignments {
		if a.ReviewerAccountID == reviewerID && a.Status == model.AssignmentAssigned {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (r *repo) CountReviewerAssignments(_ context.Context, reviewerID string) (int, error) {
	if err := r.fault("CountReviewerAssignments"); err != nil {
		return 0, err
	}
	count := 0
	for _, a := range r.st.assignments {
		if a.ReviewerAccountID == reviewerID {
			count++
		}
	}
	return count, nil
}

func (r *repo) HasApprovedReview(_ context.Context, reviewerID string) (bool, error) {
	if err := r.fault("HasApprovedReview"); err != nil {
		return false, err
	}
	for _, a := range r.st.assignments {
		if a.ReviewerAccountID == reviewerID && a.Status == model.AssignmentApproved {
			return true, nil
		}
	}
	return false, nil
}

func (r *repo) CreateRelationship(_ context.Context, rel *model.ReviewRelationship) error {
	if err := r.fault("CreateRelationship"); err != nil {
		return err
	}
	for _, existing := range r.st.relationships {
		if existing.ReviewerAccountID == rel.ReviewerAccountID && existing.OwnerAccountID == rel.OwnerAccountID {
			return conflict("relationship already exists")
		}
	}
	r.st.relationships[rel.RelationshipID] = *rel
	return nil
}

func (r *repo) ListReviewersForOwner(_ context.Context, ownerID string) ([]string, error) {
	if err := r.fault("ListReviewersForOwner"); err != nil {
		return nil, err
	}
	ids := []string{}
	for _, rel := range r.st.relationships {
		if rel.OwnerAccountID == ownerID {
			ids = append(ids, rel.ReviewerAccountID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *repo) CreateProblemReport(_ context.Context, report *model.ProblemReport) error {
	if err := r.fault("CreateProblemReport"); err != nil {
		return err
	}
	r.st.reports[report.ReportID] = *report
	return nil
}

func (r *repo) AppendLedgerEntry(_ context.Context, entry *model.LedgerEntry) error {
	if err := r.fault("AppendLedgerEntry"); err != nil {
		return err
	}
	if !entry.SignValid() {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "ledger amount sign does not match its kind", nil)
	}
	if _, ok := r.st.accounts[entry.AccountID]; !ok {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "ledger account does not exist", nil)
	}
	r.st.ledger = append(r.st.ledger, *entry)
	return nil
}

func (r *repo) GetBalance(_ context.Context, accountID string) (int64, error) {
	if err := r.fault("GetBalance"); err != nil {
		return 0, err
	}
	var balance int64
	for _, e := range r.st.ledger {
		if e.AccountID == accountID {
			balance += e.Amount
		}
	}
	return balance, nil
}

func (r *repo) ListLedgerEntries(_ context.Context, accountID string, limit, offset int) ([]model.LedgerEntry, error) {
	if err := r.fault("ListLedgerEntries"); err != nil {
		return nil, err
	}
	entries := []model.LedgerEntry{}
	// newest first; append order breaks ties between equal timestamps
	for i := len(r.st.ledger) - 1; i >= 0; i-- {
		if r.st.ledger[i].AccountID == accountID {
			entries = append(entries, r.st.ledger[i])
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].CreatedAt.After(entries[b].CreatedAt)
	})
	if offset >= len(entries) {
		return []model.LedgerEntry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func queuedTime(i model.Item) time.Time {
	if i.QueueEnteredAt == nil {
		return time.Time{}
	}
	return *i.QueueEnteredAt
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
