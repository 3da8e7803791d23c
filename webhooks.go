/*
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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/outboundlabs/relay/config"
	"github.com/outboundlabs/relay/internal/notification"
	"github.com/outboundlabs/relay/model"

	"github.com/hibiken/asynq"
)

// DraftEvent is the lifecycle notification pushed to the configured
// webhook endpoint: draft.created, draft.approved, draft.rejected,
// draft.sent.
type DraftEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// postDraftEvent enqueues a lifecycle event for async webhook delivery.
// Event delivery is best effort and never fails the operation that
// produced it.
func (r *Relay) postDraftEvent(event string, draft *model.Draft) {
	if r.queue == nil {
		return
	}
	if err := r.queue.Enqueue(DraftEvent{Event: event, Payload: draft}); err != nil {
		logrus.Errorf("failed to enqueue %s event for draft %s: %v", event, draft.DraftID, err)
	}
}

// processHTTP delivers one event to the configured webhook endpoint.
func processHTTP(data DraftEvent) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}
	payload := bytes.NewBuffer(jsonData)

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}

	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	// A non-2XX answer counts as a failed delivery so asynq retries it.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Request failed with status code: %d\n", resp.StatusCode)
		return fmt.Errorf("webhook endpoint returned %d for %s", resp.StatusCode, data.Event)
	}

	log.Println("Webhook notification delivered:", data.Event)
	return nil
}

// ProcessWebhookEvent is the asynq handler for the webhook queue. A
// delivery failure is reported through the error notification channel and
// returned so asynq retries the task.
func ProcessWebhookEvent(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}
	var payload DraftEvent
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	log.Printf("Processing webhook: %+v\n", payload.Event)
	if err := processHTTP(payload); err != nil {
		notification.NotifyError(err)
		return err
	}
	return nil
}
