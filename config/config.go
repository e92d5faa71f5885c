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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	MemoryDataSource = "memory://"

	defaultReviewDueDays      = 7
	defaultInstallWaitMinutes = 60
	defaultMinReviewLength    = 25
	defaultCycleLengthDays    = 28
	defaultFreeTierCap        = 4
	defaultBatchSize          = 50
	defaultScanLimit          = 500
	defaultMaxRetries         = 5
	defaultBatchLockSeconds   = 300
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"REVIEWLOOP_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"REVIEWLOOP_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"REVIEWLOOP_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"REVIEWLOOP_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"REVIEWLOOP_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"REVIEWLOOP_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"REVIEWLOOP_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"REVIEWLOOP_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"REVIEWLOOP_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	WebhookQueue  string `json:"webhook_queue" envconfig:"REVIEWLOOP_QUEUE_WEBHOOK"`
	MatchingQueue string `json:"matching_queue" envconfig:"REVIEWLOOP_QUEUE_MATCHING"`
	Concurrency   int    `json:"concurrency" envconfig:"REVIEWLOOP_QUEUE_CONCURRENCY"`
}

// MatchingConfig controls the assignment matcher. Schedule is a cron expression understood by
// the asynq scheduler; an empty schedule disables periodic batches.
type MatchingConfig struct {
	BatchSize        int    `json:"batch_size" envconfig:"REVIEWLOOP_MATCHING_BATCH_SIZE"`
	ScanLimit        int    `json:"scan_limit" envconfig:"REVIEWLOOP_MATCHING_SCAN_LIMIT"`
	Schedule         string `json:"schedule" envconfig:"REVIEWLOOP_MATCHING_SCHEDULE"`
	MaxRetries       int    `json:"max_retries" envconfig:"REVIEWLOOP_MATCHING_MAX_RETRIES"`
	BatchLockSeconds int    `json:"batch_lock_seconds" envconfig:"REVIEWLOOP_MATCHING_BATCH_LOCK_SECONDS"`
}

type CycleConfig struct {
	LengthDays  int `json:"length_days" envconfig:"REVIEWLOOP_CYCLE_LENGTH_DAYS"`
	FreeTierCap int `json:"free_tier_cap" envconfig:"REVIEWLOOP_CYCLE_FREE_TIER_CAP"`
}

type LifecycleConfig struct {
	ReviewDueDays      int `json:"review_due_days" envconfig:"REVIEWLOOP_LIFECYCLE_REVIEW_DUE_DAYS"`
	InstallWaitMinutes int `json:"install_wait_minutes" envconfig:"REVIEWLOOP_LIFECYCLE_INSTALL_WAIT_MINUTES"`
	MinReviewLength    int `json:"min_review_length" envconfig:"REVIEWLOOP_LIFECYCLE_MIN_REVIEW_LENGTH"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"REVIEWLOOP_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"REVIEWLOOP_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"REVIEWLOOP_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

// MetricsConfig exposes Prometheus metrics on Path when enabled.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" envconfig:"REVIEWLOOP_METRICS_ENABLED"`
	Namespace string `json:"namespace" envconfig:"REVIEWLOOP_METRICS_NAMESPACE"`
	Path      string `json:"path" envconfig:"REVIEWLOOP_METRICS_PATH"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"REVIEWLOOP_TRACING_ENABLED"`
	ServiceName string `json:"service_name" envconfig:"REVIEWLOOP_TRACING_SERVICE_NAME"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"REVIEWLOOP_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"REVIEWLOOP_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Matching     MatchingConfig   `json:"matching"`
	Cycle        CycleConfig      `json:"cycle"`
	Lifecycle    LifecycleConfig  `json:"lifecycle"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Tracing      TracingConfig    `json:"tracing"`
	Metrics      MetricsConfig    `json:"metrics"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// a local .env file only fills variables the environment leaves unset
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	// override config from environment variables
	err = envconfig.Process("reviewloop", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called reviewloop.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Reviewloop Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Redis.Dns == "" && !cnf.UsesMemoryStore() {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "reviewloop_webhooks"
	}
	if cnf.Queue.MatchingQueue == "" {
		cnf.Queue.MatchingQueue = "reviewloop_matching"
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 1
	}

	if cnf.Matching.BatchSize <= 0 {
		cnf.Matching.BatchSize = defaultBatchSize
	}
	if cnf.Cycle.FreeTierCap <= 0 {
		log.Printf("Warning: Free tier cap not specified. Setting default value: %d", defaultFreeTierCap)
		cnf.Cycle.FreeTierCap = defaultFreeTierCap
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	if cnf.Metrics.Namespace == "" {
		cnf.Metrics.Namespace = "reviewloop"
	}
	if cnf.Metrics.Path == "" {
		cnf.Metrics.Path = "/metrics"
	}

	if cnf.Tracing.ServiceName == "" {
		cnf.Tracing.ServiceName = "reviewloop"
	}

	return nil
}

// UsesMemoryStore reports whether the data source points at the in-process store.
func (cnf *Configuration) UsesMemoryStore() bool {
	return strings.HasPrefix(cnf.DataSource.Dns, MemoryDataSource)
}

// The accessors below fall back to defaults so that partially filled configurations
// (for example the ones installed with MockConfig) still drive the engine correctly.

func (l LifecycleConfig) DueWindow() time.Duration {
	return time.Duration(orDefault(l.ReviewDueDays, defaultReviewDueDays)) * 24 * time.Hour
}

func (l LifecycleConfig) InstallWait() time.Duration {
	return time.Duration(orDefault(l.InstallWaitMinutes, defaultInstallWaitMinutes)) * time.Minute
}

func (l LifecycleConfig) ReviewMinLength() int {
	return orDefault(l.MinReviewLength, defaultMinReviewLength)
}

func (c CycleConfig) Length() time.Duration {
	return time.Duration(orDefault(c.LengthDays, defaultCycleLengthDays)) * 24 * time.Hour
}

func (c CycleConfig) Cap() int {
	return orDefault(c.FreeTierCap, defaultFreeTierCap)
}

func (m MatchingConfig) Size() int {
	return orDefault(m.BatchSize, defaultBatchSize)
}

func (m MatchingConfig) Scan() int {
	return orDefault(m.ScanLimit, defaultScanLimit)
}

func (m MatchingConfig) Retries() uint64 {
	return uint64(orDefault(m.MaxRetries, defaultMaxRetries))
}

func (m MatchingConfig) BatchLockTTL() time.Duration {
	return time.Duration(orDefault(m.BatchLockSeconds, defaultBatchLockSeconds)) * time.Second
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
