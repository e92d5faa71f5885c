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
	"time"

	"github.com/reviewloop/reviewloop/internal/apierror"
	"github.com/reviewloop/reviewloop/internal/notification"
)

const (
	EventItemQueued            = "item.queued"
	EventItemAssigned          = "item.assigned"
	EventItemRemoved           = "item.removed_from_queue"
	EventReviewApproved        = "review.approved"
	EventAssignmentCancelled   = "assignment.cancelled"
	EventProblemReported       = "assignment.problem_reported"
	EventCreditsGranted        = "credits.granted"
	notificationDeliverTimeout = 10 * time.Second
)

// Notifier hands events to an outbound delivery channel. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event string, payload interface{}) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, interface{}) error { return nil }

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event string, payload interface{}) error

func (f NotifierFunc) Notify(ctx context.Context, event string, payload interface{}) error {
	return f(ctx, event, payload)
}

// notify delivers in the background. Failures are reported and never reach the caller, the
// state change that produced the event is already committed.
func (e *Engine) notify(event string, payload interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationDeliverTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, event, payload); err != nil {
			notification.NotifyError(apierror.NewAPIError(apierror.ErrDependency, "failed to deliver "+event, err))
		}
	}()
}
