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
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/reviewloop/reviewloop/config"
	redis_db "github.com/reviewloop/reviewloop/internal/redis-db"
)

const (
	TaskWebhook       = "reviewloop:webhook"
	TaskMatchingBatch = "reviewloop:matching_batch"
)

// Queue enqueues background work on asynq.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	cnf       *config.Configuration
}

// MatchingBatchPayload is the body of a matching batch task.
type MatchingBatchPayload struct {
	Max int `json:"max"`
}

func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	return &Queue{
		Client:    asynq.NewClient(opt),
		Inspector: asynq.NewInspector(opt),
		cnf:       conf,
	}, nil
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}

// Notify enqueues a webhook delivery. Nothing is enqueued when no webhook URL is configured.
func (q *Queue) Notify(ctx context.Context, event string, payload interface{}) error {
	if q.cnf.Notification.Webhook.Url == "" {
		return nil
	}
	body, err := json.Marshal(NewWebhook{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskWebhook, body, asynq.Queue(q.cnf.Queue.WebhookQueue), asynq.MaxRetry(10))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	logrus.Debugf("enqueued webhook %s as task %s", event, info.ID)
	return nil
}

// EnqueueMatchingBatch schedules a matching pass to run on a worker.
func (q *Queue) EnqueueMatchingBatch(ctx context.Context, max int) (string, error) {
	task, err := NewMatchingBatchTask(q.cnf, max)
	if err != nil {
		return "", err
	}
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// NewMatchingBatchTask builds the task used both for one-off and scheduled batches.
func NewMatchingBatchTask(conf *config.Configuration, max int) (*asynq.Task, error) {
	body, err := json.Marshal(MatchingBatchPayload{Max: max})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatchingBatch, body,
		asynq.Queue(conf.Queue.MatchingQueue),
		asynq.MaxRetry(conf.Matching.MaxRetries),
	), nil
}

// ProcessMatchingBatch is the asynq handler for TaskMatchingBatch.
func (e *Engine) ProcessMatchingBatch(ctx context.Context, task *asynq.Task) error {
	var payload MatchingBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid matching batch payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := e.RunMatchingBatch(ctx, payload.Max)
	return err
}
