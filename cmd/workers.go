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

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop"
	"github.com/reviewloop/reviewloop/config"
	redis_db "github.com/reviewloop/reviewloop/internal/redis-db"
)

func initializeQueues(cfg *config.Configuration) map[string]int {
	return map[string]int{
		cfg.Queue.WebhookQueue:  3,
		cfg.Queue.MatchingQueue: 1,
	}
}

func initializeWorkerServer(conf *config.Configuration, opt asynq.RedisConnOpt) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      initializeQueues(conf),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logrus.Errorf("task %s failed (retry %d): %v", task.Type(), retried, err)
		}),
	})
}

func initializeTaskHandlers(app *engineInstance, mux *asynq.ServeMux) {
	mux.HandleFunc(reviewloop.TaskWebhook, reviewloop.ProcessWebhook)
	mux.HandleFunc(reviewloop.TaskMatchingBatch, app.engine.ProcessMatchingBatch)
}

// initializeScheduler registers the periodic matching batch. It returns nil when no
// schedule is configured.
func initializeScheduler(conf *config.Configuration, opt asynq.RedisConnOpt) (*asynq.Scheduler, error) {
	if conf.Matching.Schedule == "" {
		return nil, nil
	}
	task, err := reviewloop.NewMatchingBatchTask(conf, 0)
	if err != nil {
		return nil, err
	}
	scheduler := asynq.NewScheduler(opt, nil)
	entryID, err := scheduler.Register(conf.Matching.Schedule, task)
	if err != nil {
		return nil, fmt.Errorf("invalid matching schedule %q: %v", conf.Matching.Schedule, err)
	}
	logrus.Infof("matching batch scheduled (%s) as %s", conf.Matching.Schedule, entryID)
	return scheduler, nil
}

// workerCommands starts the asynq workers for webhook delivery and matching batches, and
// the scheduler for periodic batches.
func workerCommands(app *engineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start reviewloop workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			conf := app.cnf
			if conf.Redis.Dns == "" {
				log.Fatal("workers need redis.dns to be configured")
			}

			shutdown, err := initializeTracing(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			if err != nil {
				log.Fatalf("error parsing Redis URL: %v", err)
			}

			scheduler, err := initializeScheduler(conf, opt)
			if err != nil {
				log.Fatal(err)
			}
			if scheduler != nil {
				if err := scheduler.Start(); err != nil {
					log.Fatalf("could not start scheduler: %v", err)
				}
				defer scheduler.Shutdown()
			}

			srv := initializeWorkerServer(conf, opt)
			mux := asynq.NewServeMux()
			initializeTaskHandlers(app, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
