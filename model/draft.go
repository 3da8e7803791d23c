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

package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	DraftStatusPendingApproval = "PENDING_APPROVAL"
	DraftStatusApproved        = "APPROVED"
	DraftStatusRejected        = "REJECTED"
	DraftStatusSent            = "SENT"
)

// MinDraftBodyLength is the shortest message body the pipeline will accept.
// Anything shorter is rejected at creation time.
const MinDraftBodyLength = 50

// Draft represents one outbound message tracked through the approval
// lifecycle. A draft is mutated only through the pipeline's transition
// operations and becomes immutable once it reaches REJECTED or SENT.
type Draft struct {
	DraftID           string                 `json:"draft_id"`
	Recipient         string                 `json:"recipient"`
	Subject           string                 `json:"subject"`
	Body              string                 `json:"body"`
	BodyHTML          string                 `json:"body_html,omitempty"`
	Status            string                 `json:"status"`
	MetaData          map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	ApprovedAt        time.Time              `json:"approved_at,omitempty"`
	ApprovedBy        string                 `json:"approved_by,omitempty"`
	RejectedReason    string                 `json:"rejected_reason,omitempty"`
	ExternalMessageID string                 `json:"external_message_id,omitempty"`
	ExternalThreadID  string                 `json:"external_thread_id,omitempty"`
}

// NewDraftRequest carries the fields callers supply when creating a draft.
type NewDraftRequest struct {
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Body      string                 `json:"body"`
	BodyHTML  string                 `json:"body_html,omitempty"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
}

func (r NewDraftRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Recipient, validation.Required, is.EmailFormat),
		validation.Field(&r.Subject, validation.Required),
		validation.Field(&r.Body, validation.Required),
	)
}

// IsTerminal reports whether the draft can no longer change state.
func (d *Draft) IsTerminal() bool {
	return d.Status == DraftStatusRejected || d.Status == DraftStatusSent
}

// CanTransition reports whether a draft in the current status may move to
// the target status. APPROVED -> REJECTED is allowed only for the safety
// rejection path inside send; callers distinguish that by the reason they
// attach, the state machine itself permits the edge.
func (d *Draft) CanTransition(target string) bool {
	switch target {
	case DraftStatusApproved:
		return d.Status == DraftStatusPendingApproval
	case DraftStatusRejected:
		return d.Status == DraftStatusPendingApproval || d.Status == DraftStatusApproved
	case DraftStatusSent:
		return d.Status == DraftStatusApproved
	default:
		return false
	}
}

// EnsureMetaData lazily initializes the metadata map.
func (d *Draft) EnsureMetaData() {
	if d.MetaData == nil {
		d.MetaData = make(map[string]interface{})
	}
}
