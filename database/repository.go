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

package database

import (
	"context"
	"time"

	"github.com/outboundlabs/relay/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	draft   // Interface for draft lifecycle operations
	contact // Interface for backlog contact operations
	quota   // Interface for quota counter operations
}

// draft defines methods for handling drafts.
type draft interface {
	RecordDraft(ctx context.Context, d *model.Draft) (*model.Draft, error)                    // Persists a new draft
	GetDraft(ctx context.Context, id string) (*model.Draft, error)                            // Retrieves a draft by ID
	GetDraftsByStatus(ctx context.Context, status string, limit, offset int) ([]model.Draft, error) // Retrieves drafts filtered by status, in creation order
	UpdateDraft(ctx context.Context, d *model.Draft, expectedStatus string) (bool, error)     // Conditionally updates a draft; false when the status precondition failed
}

// contact defines methods for handling queued contacts.
type contact interface {
	RecordQueuedContact(ctx context.Context, c *model.QueuedContact) (*model.QueuedContact, error) // Persists a new backlog entry
	QueuedEmailExists(ctx context.Context, email string) (bool, error)                             // Case-insensitive backlog membership check
	GetNextQueuedContact(ctx context.Context) (*model.QueuedContact, error)                        // Highest static priority QUEUED entry, nil when empty
	UpdateContactStatus(ctx context.Context, id, fromStatus, toStatus, errorMessage string) (bool, error) // Conditional status transition
	CountContactsByStatus(ctx context.Context) (map[string]int64, error)                           // Backlog counts grouped by status
}

// quota defines methods for the fixed-calendar-bucket quota counters.
type quota interface {
	IncrementQuotaCounters(ctx context.Context, recipient string, now time.Time) error                          // Increments all three dimensions in one transaction
	GetQuotaCounts(ctx context.Context, recipient string, now time.Time) (daily, weekly, recipientWeekly int64, err error) // Current bucket counts; missing rows read as zero
}
