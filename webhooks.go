package reviewloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/internal/request"
)

// NewWebhook is the body posted to the configured webhook URL.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

func processHTTP(ctx context.Context, conf *config.Configuration, data NewWebhook) error {
	_, err := request.PostJSON(ctx, conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, data, nil)
	return err
}

// ProcessWebhook is the asynq handler for TaskWebhook.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid webhook payload: %v: %w", err, asynq.SkipRetry)
	}
	logrus.Infof("delivering webhook %s", payload.Event)
	return processHTTP(ctx, conf, payload)
}
