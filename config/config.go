/*
Copyright 2025 Outbound Labs Authors.

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

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RELAY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"RELAY_REDIS_DNS"`
}

// QuotaConfig holds the send-volume limits enforced per fixed calendar
// bucket. These limit how many emails leave the system, independently of
// how fast the backlog drains.
type QuotaConfig struct {
	DailyLimit           int `json:"daily_limit" envconfig:"RELAY_QUOTA_DAILY_LIMIT"`
	WeeklyLimit          int `json:"weekly_limit" envconfig:"RELAY_QUOTA_WEEKLY_LIMIT"`
	RecipientWeeklyLimit int `json:"recipient_weekly_limit" envconfig:"RELAY_QUOTA_RECIPIENT_WEEKLY_LIMIT"`
}

// PacingConfig throttles the bulk processor's drain rate over rolling
// windows. Deliberately separate state from QuotaConfig.
type PacingConfig struct {
	HourlyLimit     int `json:"hourly_limit" envconfig:"RELAY_PACING_HOURLY_LIMIT"`
	DailyLimit      int `json:"daily_limit" envconfig:"RELAY_PACING_DAILY_LIMIT"`
	WeeklyLimit     int `json:"weekly_limit" envconfig:"RELAY_PACING_WEEKLY_LIMIT"`
	MinDelaySec     int `json:"min_delay_sec" envconfig:"RELAY_PACING_MIN_DELAY_SEC"`
	PollIntervalSec int `json:"poll_interval_sec" envconfig:"RELAY_PACING_POLL_INTERVAL_SEC"`
}

type ApprovalConfig struct {
	Required     bool   `json:"required" envconfig:"RELAY_APPROVAL_REQUIRED"`
	AutoApprover string `json:"auto_approver" envconfig:"RELAY_APPROVAL_AUTO_APPROVER"`
}

// DispatchConfig tunes the resilient executor protecting external calls.
type DispatchConfig struct {
	MaxRetries              int `json:"max_retries" envconfig:"RELAY_DISPATCH_MAX_RETRIES"`
	BaseBackoffMs           int `json:"base_backoff_ms" envconfig:"RELAY_DISPATCH_BASE_BACKOFF_MS"`
	MaxBackoffMs            int `json:"max_backoff_ms" envconfig:"RELAY_DISPATCH_MAX_BACKOFF_MS"`
	BreakerFailureThreshold int `json:"breaker_failure_threshold" envconfig:"RELAY_DISPATCH_BREAKER_FAILURE_THRESHOLD"`
	BreakerRecoverySec      int `json:"breaker_recovery_sec" envconfig:"RELAY_DISPATCH_BREAKER_RECOVERY_SEC"`
	BreakerHalfOpenMaxCalls int `json:"breaker_half_open_max_calls" envconfig:"RELAY_DISPATCH_BREAKER_HALF_OPEN_MAX_CALLS"`
}

type ScorerConfig struct {
	HistoryCacheTTLSec int `json:"history_cache_ttl_sec" envconfig:"RELAY_SCORER_HISTORY_CACHE_TTL_SEC"`
}

type QueueConfig struct {
	WebhookQueue   string `json:"webhook_queue" envconfig:"RELAY_QUEUE_WEBHOOK_QUEUE"`
	MonitoringPort string `json:"monitoring_port" envconfig:"RELAY_QUEUE_MONITORING_PORT"`
}

// ProvidersConfig points the pipeline at the external collaborator
// services. An empty safety or history URL falls back to a permissive
// local implementation; an empty dispatch URL puts sends in dry-run mode.
type ProvidersConfig struct {
	DispatchUrl string `json:"dispatch_url" envconfig:"RELAY_PROVIDERS_DISPATCH_URL"`
	SafetyUrl   string `json:"safety_url" envconfig:"RELAY_PROVIDERS_SAFETY_URL"`
	HistoryUrl  string `json:"history_url" envconfig:"RELAY_PROVIDERS_HISTORY_URL"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"RELAY_PROJECT_NAME"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Quota        QuotaConfig      `json:"quota"`
	Pacing       PacingConfig     `json:"pacing"`
	Approval     ApprovalConfig   `json:"approval"`
	Dispatch     DispatchConfig   `json:"dispatch"`
	Scorer       ScorerConfig     `json:"scorer"`
	Queue        QueueConfig      `json:"queue"`
	Providers    ProvidersConfig  `json:"providers"`
	Notification Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("relay", &cnf)
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
		return nil, errors.New("config not loaded from file. Create a json file called relay.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Relay Pipeline"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Quota.DailyLimit == 0 {
		cnf.Quota.DailyLimit = 20
	}
	if cnf.Quota.WeeklyLimit == 0 {
		cnf.Quota.WeeklyLimit = 2
	}
	if cnf.Quota.RecipientWeeklyLimit == 0 {
		cnf.Quota.RecipientWeeklyLimit = 2
	}

	if cnf.Pacing.HourlyLimit == 0 {
		cnf.Pacing.HourlyLimit = 8
	}
	if cnf.Pacing.DailyLimit == 0 {
		cnf.Pacing.DailyLimit = 25
	}
	if cnf.Pacing.WeeklyLimit == 0 {
		cnf.Pacing.WeeklyLimit = 120
	}
	if cnf.Pacing.MinDelaySec == 0 {
		cnf.Pacing.MinDelaySec = 90
	}
	if cnf.Pacing.PollIntervalSec == 0 {
		cnf.Pacing.PollIntervalSec = 30
	}

	if cnf.Approval.AutoApprover == "" {
		cnf.Approval.AutoApprover = "auto-approval"
	}

	if cnf.Dispatch.MaxRetries == 0 {
		cnf.Dispatch.MaxRetries = 3
	}
	if cnf.Dispatch.BaseBackoffMs == 0 {
		cnf.Dispatch.BaseBackoffMs = 500
	}
	if cnf.Dispatch.MaxBackoffMs == 0 {
		cnf.Dispatch.MaxBackoffMs = 30000
	}
	if cnf.Dispatch.BreakerFailureThreshold == 0 {
		cnf.Dispatch.BreakerFailureThreshold = 3
	}
	if cnf.Dispatch.BreakerRecoverySec == 0 {
		cnf.Dispatch.BreakerRecoverySec = 60
	}
	if cnf.Dispatch.BreakerHalfOpenMaxCalls == 0 {
		cnf.Dispatch.BreakerHalfOpenMaxCalls = 2
	}

	if cnf.Scorer.HistoryCacheTTLSec == 0 {
		cnf.Scorer.HistoryCacheTTLSec = 900
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "relay_webhook"
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5051"
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
