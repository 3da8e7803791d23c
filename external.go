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

	"github.com/outboundlabs/relay/model"
)

// DispatchReceipt is what the external mail system hands back for a
// successfully delivered message.
type DispatchReceipt struct {
	ExternalMessageID string
	ExternalThreadID  string
}

// ContentDispatcher delivers an approved message through the external mail
// provider. Implementations should surface transient provider failures as
// resilience.HTTPError or resilience.TransientError so the executor can
// classify them.
type ContentDispatcher interface {
	Send(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*DispatchReceipt, error)
}

// SafetyReport is the outcome of a pre-dispatch content check.
type SafetyReport struct {
	Safe       bool
	Violations []string
	Warnings   []string
}

// SafetyValidator runs the pre-dispatch content checks. Called
// synchronously inside send, after quota and before dispatch.
type SafetyValidator interface {
	Validate(ctx context.Context, recipient, subject, bodyText, bodyHTML string) (*SafetyReport, error)
}

// EngagementHistoryProvider reports when a recipient was last contacted.
// Best effort: the scorer tolerates errors by falling back to neutral
// scoring, so implementations may simply surface upstream failures.
type EngagementHistoryProvider interface {
	GetLastContactDate(ctx context.Context, email string) (*time.Time, error)
}

// WorkflowHandler is the opaque per-contact workflow the bulk processor
// drives: enrichment, drafting, and ultimately a CreateDraft call. Its
// internals live outside this module.
type WorkflowHandler func(ctx context.Context, contact *model.QueuedContact) error
