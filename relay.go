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

package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outboundlabs/relay/config"
	"github.com/outboundlabs/relay/database"
	"github.com/outboundlabs/relay/internal/cache"
	redis_db "github.com/outboundlabs/relay/internal/redis-db"
	"github.com/outboundlabs/relay/internal/resilience"
	"github.com/outboundlabs/relay/model"
)

// Relay is the outreach dispatch pipeline: the draft approval state
// machine, the quota enforcer, the priority scorer and the bulk processor,
// wired to the external collaborators they call into. All dependencies are
// injected at construction; there is no ambient global state.
type Relay struct {
	datasource database.IDataSource
	redis      redis.UniversalClient
	queue      *EventQueue
	executor   *resilience.Executor
	breaker    *resilience.Breaker
	quota      *QuotaEnforcer
	scorer     *PriorityScorer
	processor  *BulkProcessor

	dispatcher ContentDispatcher
	safety     SafetyValidator
}

// Collaborators bundles the external service implementations the pipeline
// calls into. The implementations (mail APIs, CRM clients) live outside
// this module.
type Collaborators struct {
	Dispatcher ContentDispatcher
	Safety     SafetyValidator
	History    EngagementHistoryProvider
}

// NewRelay initializes the pipeline from the loaded configuration and the
// provided datasource and collaborators.
func NewRelay(db database.IDataSource, collaborators Collaborators) (*Relay, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	historyCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilience.Config{
		MaxRetries:  configuration.Dispatch.MaxRetries,
		BaseBackoff: time.Duration(configuration.Dispatch.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:  time.Duration(configuration.Dispatch.MaxBackoffMs) * time.Millisecond,
	})
	breaker := resilience.NewBreaker("content-dispatcher", resilience.BreakerConfig{
		FailureThreshold: uint32(configuration.Dispatch.BreakerFailureThreshold),
		RecoveryTimeout:  time.Duration(configuration.Dispatch.BreakerRecoverySec) * time.Second,
		HalfOpenMaxCalls: uint32(configuration.Dispatch.BreakerHalfOpenMaxCalls),
	})

	quota := NewQuotaEnforcer(db, QuotaLimits{
		Daily:           configuration.Quota.DailyLimit,
		Weekly:          configuration.Quota.WeeklyLimit,
		RecipientWeekly: configuration.Quota.RecipientWeeklyLimit,
	})
	scorer := NewPriorityScorer(collaborators.History, historyCache,
		time.Duration(configuration.Scorer.HistoryCacheTTLSec)*time.Second)

	newRelay := &Relay{
		datasource: db,
		redis:      redisClient.Client(),
		queue:      NewEventQueue(configuration),
		executor:   executor,
		breaker:    breaker,
		quota:      quota,
		scorer:     scorer,
		dispatcher: collaborators.Dispatcher,
		safety:     collaborators.Safety,
	}
	newRelay.processor = NewBulkProcessor(db, PacingLimits{
		Hourly:    configuration.Pacing.HourlyLimit,
		Daily:     configuration.Pacing.DailyLimit,
		Weekly:    configuration.Pacing.WeeklyLimit,
		MinDelay:  time.Duration(configuration.Pacing.MinDelaySec) * time.Second,
		PollEvery: time.Duration(configuration.Pacing.PollIntervalSec) * time.Second,
	})
	return newRelay, nil
}

// Quota returns the quota enforcer for upstream inspection surfaces.
func (r *Relay) Quota() *QuotaEnforcer {
	return r.quota
}

// Scorer returns the priority scorer.
func (r *Relay) Scorer() *PriorityScorer {
	return r.scorer
}

// Processor returns the bulk backlog processor.
func (r *Relay) Processor() *BulkProcessor {
	return r.processor
}

// Events returns the lifecycle event queue.
func (r *Relay) Events() *EventQueue {
	return r.queue
}

// DefaultWorkflow is the per-contact handler the workers command runs:
// score the contact with live engagement history and publish a
// contact.ready event carrying the score, for a downstream composer to
// turn into a draft.
func (r *Relay) DefaultWorkflow() WorkflowHandler {
	return func(ctx context.Context, contact *model.QueuedContact) error {
		score := r.scorer.Score(ctx, contact)
		if r.queue == nil {
			return nil
		}
		return r.queue.Enqueue(DraftEvent{Event: "contact.ready", Payload: map[string]interface{}{
			"contact": contact,
			"score":   score,
		}})
	}
}
