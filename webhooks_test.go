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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"

	"github.com/outboundlabs/relay/config"
	"github.com/outboundlabs/relay/model"
)

func webhookTestConfig(redisAddr, webhookURL string) *config.Configuration {
	return &config.Configuration{
		Redis: config.RedisConfig{Dns: redisAddr},
		Queue: config.QueueConfig{WebhookQueue: "relay_webhook"},
		Notification: config.Notification{Webhook: struct {
			Url     string            `json:"url"`
			Headers map[string]string `json:"headers"`
		}{Url: webhookURL}},
	}
}

func TestEnqueueDraftEvent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	config.MockConfig(webhookTestConfig(mr.Addr(), "http://localhost:5001/webhook"))

	queue := NewEventQueue(webhookTestConfig(mr.Addr(), "http://localhost:5001/webhook"))
	err = queue.Enqueue(DraftEvent{
		Event:   "draft.created",
		Payload: &model.Draft{DraftID: "drf_1", Recipient: "jane@acme.com"},
	})
	assert.NoError(t, err)

	// The task landed in redis.
	assert.NotEmpty(t, mr.Keys())
}

func TestProcessWebhookEventDelivers(t *testing.T) {
	var received DraftEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	config.MockConfig(webhookTestConfig("localhost:6379", server.URL))

	payload, err := json.Marshal(DraftEvent{
		Event:   "draft.sent",
		Payload: map[string]interface{}{"draft_id": "drf_1"},
	})
	assert.NoError(t, err)

	task := asynq.NewTask("relay_webhook", payload)
	err = ProcessWebhookEvent(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, "draft.sent", received.Event)
}

func TestProcessWebhookEventFailsOnNon2xx(t *testing.T) {
	// A rejecting endpoint must fail the task so asynq redelivers it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config.MockConfig(webhookTestConfig("localhost:6379", server.URL))

	payload, err := json.Marshal(DraftEvent{Event: "draft.sent"})
	assert.NoError(t, err)

	task := asynq.NewTask("relay_webhook", payload)
	err = ProcessWebhookEvent(context.Background(), task)
	assert.ErrorContains(t, err, "webhook endpoint returned 500")
}

func TestProcessWebhookEventSkipsWithoutURL(t *testing.T) {
	config.MockConfig(webhookTestConfig("localhost:6379", ""))

	payload, _ := json.Marshal(DraftEvent{Event: "draft.created"})
	task := asynq.NewTask("relay_webhook", payload)

	assert.NoError(t, ProcessWebhookEvent(context.Background(), task))
}

func TestProcessWebhookEventBadPayload(t *testing.T) {
	config.MockConfig(webhookTestConfig("localhost:6379", "http://localhost:5001/webhook"))

	task := asynq.NewTask("relay_webhook", []byte("not json"))
	assert.Error(t, ProcessWebhookEvent(context.Background(), task))
}
