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
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"

	"github.com/outboundlabs/relay/config"
	redis_db "github.com/outboundlabs/relay/internal/redis-db"
)

// EventQueue carries draft lifecycle events to the webhook worker over
// asynq.
type EventQueue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewEventQueue initializes the queue client from the loaded configuration.
func NewEventQueue(conf *config.Configuration) *EventQueue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &EventQueue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue posts one event onto the configured webhook queue.
func (q *EventQueue) Enqueue(event DraftEvent) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{asynq.Queue(cfg.Queue.WebhookQueue)}
	task := asynq.NewTask(cfg.Queue.WebhookQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// PendingEvents reports how many webhook deliveries are waiting.
func (q *EventQueue) PendingEvents() (int, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	queueInfo, err := q.Inspector.GetQueueInfo(cfg.Queue.WebhookQueue)
	if err != nil {
		return 0, err
	}
	return queueInfo.Pending, nil
}
