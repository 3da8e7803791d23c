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
	"time"
)

// MockDispatcher is a test double for the content dispatch service.
type MockDispatcher struct {
	mockSend func(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*DispatchReceipt, error)
	Calls    int
}

func (m *MockDispatcher) Send(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*DispatchReceipt, error) {
	m.Calls++
	if m.mockSend != nil {
		return m.mockSend(ctx, recipient, subject, bodyText, bodyHTML)
	}
	return &DispatchReceipt{ExternalMessageID: "msg_mock", ExternalThreadID: "thr_mock"}, nil
}

// MockSafetyValidator is a test double for the safety validation service.
type MockSafetyValidator struct {
	mockValidate func(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*SafetyReport, error)
}

func (m *MockSafetyValidator) Validate(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*SafetyReport, error) {
	if m.mockValidate != nil {
		return m.mockValidate(ctx, recipient, subject, bodyText, bodyHTML)
	}
	return &SafetyReport{Safe: true}, nil
}

// MockHistoryProvider is a test double for the engagement history service.
type MockHistoryProvider struct {
	mockGetLastContactDate func(ctx context.Context, email string) (*time.Time, error)
	Calls                  int
}

func (m *MockHistoryProvider) GetLastContactDate(ctx context.Context, email string) (*time.Time, error) {
	m.Calls++
	if m.mockGetLastContactDate != nil {
		return m.mockGetLastContactDate(ctx, email)
	}
	return nil, nil
}
