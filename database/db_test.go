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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/model"
)

func newMockStore(t *testing.T) (*Datasource, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Datasource{Conn: db}, mock
}

func TestRunInTx_Commit(t *testing.T) {
	ds, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reviewloop.ledger_entries").
		WithArgs("led_1", "acc_1", int64(1), model.LedgerEarned, "grant", "", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := ds.RunInTx(context.Background(), func(repo Repository) error {
		return repo.AppendLedgerEntry(context.Background(), &model.LedgerEntry{
			EntryID: "led_1", AccountID: "acc_1", Amount: 1, Kind: model.LedgerEarned, Description: "grant", CreatedAt: now,
		})
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	ds, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := ds.RunInTx(context.Background(), func(repo Repository) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_SerializationFailureOnCommit(t *testing.T) {
	ds, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

	err := ds.RunInTx(context.Background(), func(repo Repository) error { return nil })
	assert.True(t, apierror.Is(err, apierror.ErrConcurrencyConflict))
}

func TestWrapDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apierror.ErrorCode
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, apierror.ErrConcurrencyConflict},
		{"deadlock", &pq.Error{Code: "40P01"}, apierror.ErrConcurrencyConflict},
		{"unique violation", &pq.Error{Code: "23505"}, apierror.ErrConcurrencyConflict},
		{"check violation", &pq.Error{Code: "23514"}, apierror.ErrInvalidInput},
		{"foreign key violation", &pq.Error{Code: "23503"}, apierror.ErrInvalidInput},
		{"other", errors.New("connection reset"), apierror.ErrInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apierror.CodeOf(wrapDBError(tt.err, "failed")))
		})
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}

	mock.ExpectQuery("SELECT account_id, name, tier").
		WithArgs("acc_missing").
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}))

	_, err := r.GetAccount(context.Background(), "acc_missing")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestGetAccount_Success(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"account_id", "name", "tier", "qualified", "monthly_submission_count", "last_reset_date", "created_at"}).
		AddRow("acc_1", "Ada", "priority", true, 2, created, created)
	mock.ExpectQuery("SELECT account_id, name, tier").WithArgs("acc_1").WillReturnRows(rows)

	account, err := r.GetAccount(context.Background(), "acc_1")
	require.NoError(t, err)
	assert.Equal(t, model.TierPriority, account.Tier)
	assert.True(t, account.Qualified)
	assert.Equal(t, 2, account.MonthlySubmissionCount)
}

func TestUpdateItemStatus_NoRows(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}

	mock.ExpectExec("UPDATE reviewloop.items").
		WithArgs("itm_1", model.ItemQueued, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	err := r.UpdateItemStatus(context.Background(), "itm_1", model.ItemQueued, &now)
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestListQueuedItems(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}
	t1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"item_id", "owner_account_id", "name", "status", "queue_entered_at", "requeued_at", "created_at", "tier"}).
		AddRow("itm_a", "acc_1", "a", "queued", t2, t2, t1, "standard").
		AddRow("itm_b", "acc_2", "b", "queued", t1, nil, t1, "standard")
	mock.ExpectQuery(`ORDER BY i.requeued_at DESC NULLS LAST, i.queue_entered_at ASC`).
		WithArgs(model.TierStandard, 5).
		WillReturnRows(rows)

	items, err := r.ListQueuedItems(context.Background(), model.TierStandard, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "itm_a", items[0].ItemID)
	assert.Equal(t, model.TierStandard, items[0].OwnerTier)
	require.NotNil(t, items[0].RequeuedAt)
	assert.Equal(t, t2, *items[0].RequeuedAt)
	assert.Nil(t, items[1].RequeuedAt)
	assert.Equal(t, t1, *items[1].QueueEnteredAt)
}

func TestRequeueItem(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET status = 'queued', queue_entered_at = \$2, requeued_at = \$2`).
		WithArgs("itm_1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.RequeueItem(context.Background(), "itm_1", at))

	mock.ExpectExec("UPDATE reviewloop.items").
		WithArgs("itm_2", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := r.RequeueItem(context.Background(), "itm_2", at)
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)").
		WithArgs("acc_1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(3)))

	balance, err := r.GetBalance(context.Background(), "acc_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

func TestGetActiveAssignmentForReviewer_None(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}

	mock.ExpectQuery("FROM reviewloop.assignments").
		WithArgs("acc_1").
		WillReturnRows(sqlmock.NewRows([]string{"assignment_id"}))

	a, err := r.GetActiveAssignmentForReviewer(context.Background(), "acc_1")
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestCreateRelationship_DuplicatePair(t *testing.T) {
	ds, mock := newMockStore(t)
	r := &repository{q: ds.Conn}

	mock.ExpectExec("INSERT INTO reviewloop.review_relationships").
		WillReturnError(&pq.Error{Code: "23505"})

	err := r.CreateRelationship(context.Background(), &model.ReviewRelationship{
		RelationshipID: "rel_1", ReviewerAccountID: "acc_r", OwnerAccountID: "acc_o", ItemID: "itm_1", CreatedAt: time.Now(),
	})
	assert.True(t, apierror.Is(err, apierror.ErrConcurrencyConflict))
}
