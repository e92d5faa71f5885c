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
	"embed"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/database"
	"github.com/reviewloop/reviewloop/internal/cache"
	"github.com/reviewloop/reviewloop/internal/metrics"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("reviewloop.engine")

const matchingBatchLockKey = "reviewloop:matching:batch"

// Engine owns the review assignment workflow and the credit ledger. Every state change runs
// inside a single store transaction; notifications are emitted after commit.
type Engine struct {
	store    database.Store
	notifier Notifier
	redis    redis.UniversalClient
	cache    cache.Cache
	queue    *Queue
	metrics  metrics.Collector
	cnf      *config.Configuration
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

type Option func(*Engine)

// WithClock replaces the wall clock used for every time gate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandSource makes reviewer selection reproducible.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) { e.rnd = rand.New(src) }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRedis enables the cross-process matching batch lock.
func WithRedis(client redis.UniversalClient) Option {
	return func(e *Engine) { e.redis = client }
}

// WithCache enables idempotent replays of assignment requests.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithQueue wires the asynq queue. Unless another notifier was set, events are delivered as
// webhook tasks on it.
func WithQueue(q *Queue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithMetrics records matching, ledger and retry activity on c.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

func NewEngine(store database.Store, opts ...Option) (*Engine, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:   store,
		cnf:     cnf,
		metrics: metrics.Nop{},
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		if e.queue != nil {
			e.notifier = e.queue
		} else {
			e.notifier = noopNotifier{}
		}
	}
	return e, nil
}

func (e *Engine) Queue() *Queue {
	return e.queue
}

func (e *Engine) Close() error {
	if e.queue != nil {
		if err := e.queue.Close(); err != nil {
			return err
		}
	}
	return e.store.Close()
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// pick returns a uniformly random index in [0, n).
func (e *Engine) pick(n int) int {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return e.rnd.Intn(n)
}
