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
	"fmt"
	"strings"
)

// InvalidTransitionError is returned when an operation does not match the
// draft's current state. The draft is left unchanged.
type InvalidTransitionError struct {
	DraftID    string
	FromStatus string
	ToStatus   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("draft %s cannot move from %s to %s", e.DraftID, e.FromStatus, e.ToStatus)
}

// QuotaExceededError blocks a send. The draft stays APPROVED and can be
// retried once the offending bucket rolls over.
type QuotaExceededError struct {
	Dimension string
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	switch e.Dimension {
	case "daily":
		return fmt.Sprintf("Daily limit (%d) reached", e.Limit)
	case "weekly":
		return fmt.Sprintf("Weekly limit (%d) reached", e.Limit)
	default:
		return fmt.Sprintf("Recipient weekly limit (%d) reached", e.Limit)
	}
}

// SafetyViolationError rejects an approved draft at send time. This is the
// only path by which an APPROVED draft ends up REJECTED.
type SafetyViolationError struct {
	DraftID    string
	Violations []string
}

func (e *SafetyViolationError) Error() string {
	return fmt.Sprintf("draft %s failed safety validation: %s", e.DraftID, strings.Join(e.Violations, "; "))
}

// SendInProgressError blocks a send because another send of the same draft
// or to the same recipient currently holds the lease. The draft is left
// unchanged; retrying shortly is safe.
type SendInProgressError struct {
	DraftID string
}

func (e *SendInProgressError) Error() string {
	return fmt.Sprintf("a send for draft %s is already in progress", e.DraftID)
}

// DispatchFailureError is a transient external failure that survived every
// retry. The draft stays APPROVED with the failure recorded in metadata;
// nothing retries it automatically outside the send call's own attempts.
type DispatchFailureError struct {
	DraftID  string
	Attempts int
	LastErr  error
}

func (e *DispatchFailureError) Error() string {
	return fmt.Sprintf("dispatch for draft %s failed after %d attempts: %v", e.DraftID, e.Attempts, e.LastErr)
}

func (e *DispatchFailureError) Unwrap() error {
	return e.LastErr
}
