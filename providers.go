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
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outboundlabs/relay/config"
	"github.com/outboundlabs/relay/internal/request"
	"github.com/outboundlabs/relay/internal/resilience"
	"github.com/outboundlabs/relay/model"
)

// CollaboratorsFromConfig builds the external collaborator set from the
// providers section of the configuration. Missing safety and history URLs
// degrade to permissive local implementations; a missing dispatch URL
// yields a dry-run dispatcher that logs instead of sending.
func CollaboratorsFromConfig(conf *config.Configuration) Collaborators {
	c := Collaborators{
		Dispatcher: &DryRunDispatcher{},
		Safety:     &PermissiveSafetyValidator{},
		History:    &NoHistoryProvider{},
	}
	if conf.Providers.DispatchUrl != "" {
		c.Dispatcher = &HTTPDispatcher{URL: conf.Providers.DispatchUrl}
	}
	if conf.Providers.SafetyUrl != "" {
		c.Safety = &HTTPSafetyValidator{URL: conf.Providers.SafetyUrl}
	}
	if conf.Providers.HistoryUrl != "" {
		c.History = &HTTPHistoryProvider{URL: conf.Providers.HistoryUrl}
	}
	return c
}

// HTTPDispatcher posts the message to an external send service and maps
// non-2XX responses to typed HTTP errors so the executor can classify
// them for retry.
type HTTPDispatcher struct {
	URL string
}

func (h *HTTPDispatcher) Send(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*DispatchReceipt, error) {
	payload, err := request.ToJsonReq(map[string]interface{}{
		"recipient": recipient,
		"subject":   subject,
		"body":      bodyText,
		"body_html": bodyHTML,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.URL, payload)
	if err != nil {
		return nil, err
	}

	var response struct {
		MessageID string `json:"message_id"`
		ThreadID  string `json:"thread_id"`
	}
	// The status code decides retryability before anything else; a 503
	// with a plain-text body must still classify as retryable.
	resp, err := request.Call(req, &response)
	if resp == nil {
		return nil, &resilience.TransientError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &resilience.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("dispatch service returned %d", resp.StatusCode),
			RetryAfter: retryAfterHint(resp),
		}
	}
	if err != nil {
		return nil, err
	}
	return &DispatchReceipt{ExternalMessageID: response.MessageID, ExternalThreadID: response.ThreadID}, nil
}

func retryAfterHint(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// HTTPSafetyValidator asks an external moderation service whether the
// content may leave the system.
type HTTPSafetyValidator struct {
	URL string
}

func (h *HTTPSafetyValidator) Validate(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*SafetyReport, error) {
	payload, err := request.ToJsonReq(map[string]interface{}{
		"recipient": recipient,
		"subject":   subject,
		"body":      bodyText,
		"body_html": bodyHTML,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.URL, payload)
	if err != nil {
		return nil, err
	}

	var report SafetyReport
	resp, err := request.Call(req, &report)
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return nil, fmt.Errorf("safety service returned %d", resp.StatusCode)
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// HTTPHistoryProvider fetches the last engagement date for a recipient
// from a CRM-style service.
type HTTPHistoryProvider struct {
	URL string
}

func (h *HTTPHistoryProvider) GetLastContactDate(ctx context.Context, email string) (*time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?email=%s", h.URL, email), nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		LastContactedAt *time.Time `json:"last_contacted_at"`
	}
	resp, err := request.Call(req, &response)
	if resp != nil {
		// An unknown recipient is a valid answer: never contacted.
		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("history service returned %d", resp.StatusCode)
		}
	}
	if err != nil {
		return nil, err
	}
	return response.LastContactedAt, nil
}

// DryRunDispatcher logs the send instead of performing it. Used when no
// dispatch service is configured, so a fresh install can exercise the
// whole pipeline without emailing anyone.
type DryRunDispatcher struct{}

func (d *DryRunDispatcher) Send(_ context.Context, recipient, subject, _, _ string) (*DispatchReceipt, error) {
	logrus.Infof("dry-run dispatch to %s: %s", recipient, subject)
	return &DispatchReceipt{
		ExternalMessageID: model.GenerateUUIDWithSuffix("msg"),
	}, nil
}

// PermissiveSafetyValidator approves everything.
type PermissiveSafetyValidator struct{}

func (p *PermissiveSafetyValidator) Validate(context.Context, string, string, string, string) (*SafetyReport, error) {
	return &SafetyReport{Safe: true}, nil
}

// NoHistoryProvider reports every recipient as never contacted.
type NoHistoryProvider struct{}

func (n *NoHistoryProvider) GetLastContactDate(context.Context, string) (*time.Time, error) {
	return nil, nil
}
