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

	"github.com/outboundlabs/relay/database"
)

// QuotaLimits are the per-bucket send ceilings. Buckets are fixed calendar
// windows (UTC date, ISO week starting Monday), not rolling ones: two sends
// ten minutes apart straddling midnight land in different daily buckets.
type QuotaLimits struct {
	Daily           int
	Weekly          int
	RecipientWeekly int
}

// RemainingQuota is the headroom left in each dimension's current bucket.
type RemainingQuota struct {
	Today        int `json:"today"`
	ThisWeek     int `json:"this_week"`
	ForRecipient int `json:"for_recipient"`
}

// QuotaEnforcer tracks and enforces the three send-volume dimensions:
// global daily, global weekly, and per-recipient weekly. Counters live in
// the datasource and survive restarts.
type QuotaEnforcer struct {
	datasource database.IDataSource
	limits     QuotaLimits
	now        func() time.Time
}

func NewQuotaEnforcer(db database.IDataSource, limits QuotaLimits) *QuotaEnforcer {
	return &QuotaEnforcer{
		datasource: db,
		limits:     limits,
		now:        time.Now,
	}
}

// CheckCanSend evaluates the three counters in order and returns the first
// violated dimension's reason, or allowed=true.
func (q *QuotaEnforcer) CheckCanSend(ctx context.Context, recipient string) (bool, string, error) {
	violation, err := q.violated(ctx, recipient)
	if err != nil {
		return false, "", err
	}
	if violation != nil {
		return false, violation.Error(), nil
	}
	return true, "", nil
}

// violated returns the first exceeded dimension as a typed error, nil when
// all dimensions have headroom.
func (q *QuotaEnforcer) violated(ctx context.Context, recipient string) (*QuotaExceededError, error) {
	daily, weekly, recipientWeekly, err := q.datasource.GetQuotaCounts(ctx, recipient, q.now())
	if err != nil {
		return nil, err
	}

	if daily >= int64(q.limits.Daily) {
		return &QuotaExceededError{Dimension: "daily", Limit: q.limits.Daily}, nil
	}
	if weekly >= int64(q.limits.Weekly) {
		return &QuotaExceededError{Dimension: "weekly", Limit: q.limits.Weekly}, nil
	}
	if recipientWeekly >= int64(q.limits.RecipientWeekly) {
		return &QuotaExceededError{Dimension: "recipient_weekly", Limit: q.limits.RecipientWeekly}, nil
	}
	return nil, nil
}

// RecordSend increments all three counters for the current buckets. Called
// exactly once per successful send, never for failed or unsent drafts, and
// never decremented afterwards.
func (q *QuotaEnforcer) RecordSend(ctx context.Context, recipient string) error {
	return q.datasource.IncrementQuotaCounters(ctx, recipient, q.now())
}

// GetRemainingQuota reports the remaining headroom per dimension,
// floored at zero.
func (q *QuotaEnforcer) GetRemainingQuota(ctx context.Context, recipient string) (*RemainingQuota, error) {
	daily, weekly, recipientWeekly, err := q.datasource.GetQuotaCounts(ctx, recipient, q.now())
	if err != nil {
		return nil, err
	}
	return &RemainingQuota{
		Today:        remaining(q.limits.Daily, daily),
		ThisWeek:     remaining(q.limits.Weekly, weekly),
		ForRecipient: remaining(q.limits.RecipientWeekly, recipientWeekly),
	}, nil
}

func remaining(limit int, used int64) int {
	left := limit - int(used)
	if left < 0 {
		return 0
	}
	return left
}
