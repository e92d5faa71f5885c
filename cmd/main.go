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
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/database/memory"
	"github.com/reviewloop/reviewloop/internal/cache"
	"github.com/reviewloop/reviewloop/internal/metrics"
	"github.com/reviewloop/reviewloop/internal/notification"
	redis_db "github.com/reviewloop/reviewloop/internal/redis-db"
)

// Reviewloop is the CLI application.
type Reviewloop struct {
	cmd *cobra.Command
}

// engineInstance holds the engine and the configuration it was built from.
type engineInstance struct {
	engine *reviewloop.Engine
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs.
func preRun(app *engineInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupEngine(cmd.Context(), cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf
		return nil
	}
}

// setupStore picks the in-process store for memory:// data sources and Postgres otherwise.
func setupStore(cfg *config.Configuration) (database.Store, error) {
	if cfg.UsesMemoryStore() {
		logrus.Warn("using the in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}
	return db, nil
}

// setupEngine wires the store and, when Redis is configured, the batch lock, the
// idempotency cache and the asynq queue used for webhooks. Prometheus metrics are added when
// enabled.
func setupEngine(ctx context.Context, cfg *config.Configuration) (*reviewloop.Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := setupStore(cfg)
	if err != nil {
		return nil, err
	}

	var opts []reviewloop.Option
	if cfg.Redis.Dns != "" {
		rdb, err := redis_db.NewRedisClient(ctx, redis_db.SplitAddresses(cfg.Redis.Dns), cfg.Redis.SkipTLSVerify)
		if err != nil {
			return nil, fmt.Errorf("error connecting to redis: %v", err)
		}
		queue, err := reviewloop.NewQueue(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			reviewloop.WithRedis(rdb.Client()),
			reviewloop.WithCache(cache.NewRedisCache(rdb.Client())),
			reviewloop.WithQueue(queue),
		)
	}

	if cfg.Metrics.Enabled {
		collector, err := metrics.NewPrometheus(prometheus.DefaultRegisterer, cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("error registering metrics: %v", err)
		}
		opts = append(opts, reviewloop.WithMetrics(collector))
	}

	engine, err := reviewloop.NewEngine(store, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating engine: %v", err)
	}
	return engine, nil
}

// NewCLI sets up the root command and the server, workers, migrate, ledger and config
// subcommands.
func NewCLI() *Reviewloop {
	var configFile string
	app := &engineInstance{}

	rootCmd := &cobra.Command{
		Use:   "reviewloop",
		Short: "Review assignment and credit ledger engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./reviewloop.json", "Configuration file for reviewloop")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(ledgerCommands(app))
	rootCmd.AddCommand(configCommands())

	return &Reviewloop{cmd: rootCmd}
}

func (r Reviewloop) executeCLI() {
	if err := r.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
