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

package reviewloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/apierror"
	redlock "github.com/reviewloop/reviewloop/internal/lock"
	"github.com/reviewloop/reviewloop/model"
)

const (
	idempotencyTTL = 24 * time.Hour

	// candidates matched between extensions of the batch lock
	lockRefreshInterval = 25
)

type TierBreakdown struct {
	Priority int `json:"priority"`
	Standard int `json:"standard"`
}

// BatchResult summarizes one matching pass.
type BatchResult struct {
	Created       int                `json:"created"`
	TierBreakdown TierBreakdown      `json:"tier_breakdown"`
	Skipped       int                `json:"skipped"`
	Assignments   []model.Assignment `json:"assignments"`
}

// MatchResult is the outcome of a reviewer asking for work.
type MatchResult struct {
	Assignment    *model.Assignment `json:"assignment,omitempty"`
	NoneAvailable bool              `json:"none_available"`
}

// AssignmentEvent is the payload of assignment related notifications.
type AssignmentEvent struct {
	Assignment     model.Assignment `json:"assignment"`
	OwnerAccountID string           `json:"owner_account_id"`
}

// matchItem assigns a queued item in one transaction: batch, assignment and item status are
// written together or not at all. An empty reviewerID picks uniformly at random among the
// eligible reviewers.
func (e *Engine) matchItem(ctx context.Context, itemID, reviewerID string) (*model.Assignment, *model.Item, error) {
	var assignment *model.Assignment
	var item *model.Item

	err := e.inTx(ctx, "matchItem", func(repo database.Repository) error {
		assignment, item = nil, nil

		queued, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if queued.Status != model.ItemQueued {
			return apierror.NewAPIError(apierror.ErrStateConflict, "item is no longer queued", nil)
		}

		eligible, err := eligibleReviewers(ctx, repo, queued)
		if err != nil {
			return err
		}
		chosen := reviewerID
		if chosen != "" {
			if !containsID(eligible, chosen) {
				return apierror.NewAPIError(apierror.ErrNoEligibleReviewer, "reviewer is not eligible for this item", nil)
			}
		} else {
			if len(eligible) == 0 {
				return apierror.NewAPIError(apierror.ErrNoEligibleReviewer, "no eligible reviewer for item", nil)
			}
			chosen = eligible[e.pick(len(eligible))]
		}

		previous, err := repo.CountReviewerAssignments(ctx, chosen)
		if err != nil {
			return err
		}

		now := e.clock()
		batch := &model.AssignmentBatch{
			BatchID:           model.GenerateUUIDWithSuffix("bat"),
			ReviewerAccountID: chosen,
			Status:            model.BatchActive,
			CreatedAt:         now,
		}
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return err
		}

		a := &model.Assignment{
			AssignmentID:      model.GenerateUUIDWithSuffix("asg"),
			BatchID:           batch.BatchID,
			ItemID:            queued.ItemID,
			ReviewerAccountID: chosen,
			SequenceNumber:    previous + 1,
			AssignedAt:        now,
			DueAt:             now.Add(e.cnf.Lifecycle.DueWindow()),
			Status:            model.AssignmentAssigned,
		}
		if err := repo.CreateAssignment(ctx, a); err != nil {
			return err
		}
		if err := repo.UpdateItemStatus(ctx, queued.ItemID, model.ItemAssigned, queued.QueueEnteredAt); err != nil {
			return err
		}
		queued.Status = model.ItemAssigned

		assignment, item = a, queued
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.notify(EventItemAssigned, AssignmentEvent{Assignment: *assignment, OwnerAccountID: item.OwnerAccountID})
	return assignment, item, nil
}

// skippable reports whether a candidate failure should leave the item queued for a later pass
// instead of aborting the whole run.
func skippable(err error) bool {
	switch apierror.CodeOf(err) {
	case apierror.ErrNoEligibleReviewer, apierror.ErrStateConflict, apierror.ErrConcurrencyConflict:
		return true
	}
	return false
}

// blocksStandard reports whether a skipped candidate still holds back the standard tier. A
// priority item that stayed queued does; one another matcher took in the meantime does not.
func blocksStandard(candidate model.QueuedItem, err error) bool {
	return candidate.OwnerTier == model.TierPriority && apierror.CodeOf(err) != apierror.ErrStateConflict
}

// RunMatchingBatch assigns up to max queued items in priority order. Items without an
// eligible reviewer stay queued and are counted as skipped. Standard items are not touched
// while a priority item stays queued. When redis is configured only one batch runs at a time
// across all processes, and the batch lock is extended as the run progresses.
func (e *Engine) RunMatchingBatch(ctx context.Context, max int) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "RunMatchingBatch")
	defer span.End()

	if max <= 0 {
		max = e.cnf.Matching.Size()
	}

	started := time.Now()
	var result *BatchResult
	var err error
	if e.redis != nil {
		ttl := e.cnf.Matching.BatchLockTTL()
		err = redlock.WithLock(ctx, e.redis, matchingBatchLockKey, ttl, func(ctx context.Context, l *redlock.Locker) error {
			keepAlive := func(ctx context.Context) error {
				if err := l.Extend(ctx, ttl); err != nil {
					return apierror.NewAPIError(apierror.ErrConcurrencyConflict, fmt.Sprintf("matching batch lost lock %s", l.Key()), err.Error())
				}
				return nil
			}
			var runErr error
			result, runErr = e.runMatchingBatch(ctx, max, keepAlive)
			return runErr
		})
		if errors.Is(err, redlock.ErrLockHeld) {
			err = apierror.NewAPIError(apierror.ErrConcurrencyConflict, "a matching batch is already running", nil)
		}
	} else {
		result, err = e.runMatchingBatch(ctx, max, nil)
	}
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	e.metrics.BatchCompleted(time.Since(started))
	span.AddEvent("Matching batch completed", trace.WithAttributes(
		attribute.Int("batch.created", result.Created),
		attribute.Int("batch.skipped", result.Skipped),
	))
	logrus.Infof("matching batch created %d assignments (%d priority, %d standard), skipped %d",
		result.Created, result.TierBreakdown.Priority, result.TierBreakdown.Standard, result.Skipped)
	return result, nil
}

// runMatchingBatch walks the candidates in queue order. keepAlive, when set, runs every
// lockRefreshInterval candidates and aborts the run if it fails.
func (e *Engine) runMatchingBatch(ctx context.Context, max int, keepAlive func(context.Context) error) (*BatchResult, error) {
	scan := e.cnf.Matching.Scan()
	if scan < max {
		scan = max
	}

	var candidates []model.QueuedItem
	err := e.inTx(ctx, "dequeueCandidates", func(repo database.Repository) error {
		var err error
		candidates, err = dequeueCandidates(ctx, repo, scan)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Assignments: []model.Assignment{}}
	priorityWaiting := false
	for i, candidate := range candidates {
		if result.Created >= max {
			break
		}
		if priorityWaiting && candidate.OwnerTier != model.TierPriority {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if keepAlive != nil && i > 0 && i%lockRefreshInterval == 0 {
			if err := keepAlive(ctx); err != nil {
				return result, err
			}
		}

		assignment, _, err := e.matchItem(ctx, candidate.ItemID, "")
		if err != nil {
			if skippable(err) {
				result.Skipped++
				e.metrics.MatchingSkipped(string(apierror.CodeOf(err)))
				if blocksStandard(candidate, err) {
					priorityWaiting = true
				}
				continue
			}
			return result, err
		}

		e.metrics.AssignmentCreated(string(candidate.OwnerTier), "batch")
		result.Created++
		result.Assignments = append(result.Assignments, *assignment)
		if candidate.OwnerTier == model.TierPriority {
			result.TierBreakdown.Priority++
		} else {
			result.TierBreakdown.Standard++
		}
	}
	return result, nil
}

// RequestAssignment gives the requesting reviewer the first queued item, in priority order,
// they are eligible for. Standard items are only offered once no priority item is left
// queued. A non-empty idempotencyKey replays the first result for 24 hours.
func (e *Engine) RequestAssignment(ctx context.Context, accountID, idempotencyKey string) (*MatchResult, error) {
	ctx, span := tracer.Start(ctx, "RequestAssignment")
	defer span.End()

	cacheKey := ""
	if idempotencyKey != "" && e.cache != nil {
		cacheKey = fmt.Sprintf("reviewloop:idempotency:request-assignment:%s:%s", accountID, idempotencyKey)
		var cached MatchResult
		found, err := e.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			logrus.Warnf("idempotency cache lookup failed: %v", err)
		} else if found {
			span.AddEvent("Replayed idempotent request")
			return &cached, nil
		}
	}

	var candidates []model.QueuedItem
	err := e.inTx(ctx, "RequestAssignment", func(repo database.Repository) error {
		account, err := repo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if !account.Qualified {
			return apierror.NewAPIError(apierror.ErrStateConflict, "account is not qualified to review", nil)
		}
		active, err := repo.GetActiveAssignmentForReviewer(ctx, accountID)
		if err != nil {
			return err
		}
		if active != nil {
			return apierror.NewAPIError(apierror.ErrStateConflict, "account already holds an active assignment", active.AssignmentID)
		}
		candidates, err = dequeueCandidates(ctx, repo, e.cnf.Matching.Scan())
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &MatchResult{NoneAvailable: true}
	priorityWaiting := false
	for _, candidate := range candidates {
		if priorityWaiting && candidate.OwnerTier != model.TierPriority {
			break
		}
		if candidate.OwnerAccountID == accountID {
			if candidate.OwnerTier == model.TierPriority {
				priorityWaiting = true
			}
			continue
		}
		assignment, _, err := e.matchItem(ctx, candidate.ItemID, accountID)
		if err != nil {
			if skippable(err) {
				if blocksStandard(candidate, err) {
					priorityWaiting = true
				}
				continue
			}
			span.RecordError(err)
			return nil, err
		}
		e.metrics.AssignmentCreated(string(candidate.OwnerTier), "request")
		result = &MatchResult{Assignment: assignment}
		break
	}

	if cacheKey != "" {
		if err := e.cache.Set(ctx, cacheKey, result, idempotencyTTL); err != nil {
			logrus.Warnf("idempotency cache write failed: %v", err)
		}
	}
	return result, nil
}
