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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/outboundlabs/relay/database"
)

func newTestQuotaEnforcer(t *testing.T, limits QuotaLimits) (*QuotaEnforcer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewQuotaEnforcer(database.Datasource{Conn: db}, limits), mock
}

func TestCheckCanSendAllowed(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 20, Weekly: 100, RecipientWeekly: 2})
	expectQuotaCounts(mock, 5, 10, 1)

	allowed, reason, err := q.CheckCanSend(context.Background(), "jane@acme.com")
	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestCheckCanSendDailyLimit(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 2, Weekly: 100, RecipientWeekly: 2})
	expectQuotaCounts(mock, 2, 0, 0)

	// The daily dimension blocks regardless of the recipient's own counts.
	allowed, reason, err := q.CheckCanSend(context.Background(), "someone-new@acme.com")
	assert.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Daily limit (2) reached", reason)
}

func TestCheckCanSendWeeklyLimit(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 20, Weekly: 100, RecipientWeekly: 2})
	expectQuotaCounts(mock, 5, 100, 0)

	allowed, reason, err := q.CheckCanSend(context.Background(), "jane@acme.com")
	assert.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Weekly limit (100) reached", reason)
}

func TestCheckCanSendRecipientLimit(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 20, Weekly: 100, RecipientWeekly: 2})
	expectQuotaCounts(mock, 5, 10, 2)

	allowed, reason, err := q.CheckCanSend(context.Background(), "jane@acme.com")
	assert.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Recipient weekly limit (2) reached", reason)
}

func TestCheckCanSendViolationOrder(t *testing.T) {
	// Every dimension is exceeded; daily is reported because it is checked
	// first.
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 2, Weekly: 2, RecipientWeekly: 2})
	expectQuotaCounts(mock, 5, 5, 5)

	_, reason, err := q.CheckCanSend(context.Background(), "jane@acme.com")
	assert.NoError(t, err)
	assert.Equal(t, "Daily limit (2) reached", reason)
}

func TestRecordSend(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 20, Weekly: 100, RecipientWeekly: 2})
	expectQuotaIncrement(mock)

	assert.NoError(t, q.RecordSend(context.Background(), "jane@acme.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRemainingQuota(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 20, Weekly: 100, RecipientWeekly: 2})
	expectQuotaCounts(mock, 5, 10, 1)

	remaining, err := q.GetRemainingQuota(context.Background(), "jane@acme.com")
	assert.NoError(t, err)
	assert.Equal(t, 15, remaining.Today)
	assert.Equal(t, 90, remaining.ThisWeek)
	assert.Equal(t, 1, remaining.ForRecipient)
}

func TestGetRemainingQuotaFloorsAtZero(t *testing.T) {
	q, mock := newTestQuotaEnforcer(t, QuotaLimits{Daily: 2, Weekly: 2, RecipientWeekly: 2})
	// Counters can exceed limits when the limit was lowered mid-bucket.
	expectQuotaCounts(mock, 9, 9, 9)

	remaining, err := q.GetRemainingQuota(context.Background(), "jane@acme.com")
	assert.NoError(t, err)
	assert.Equal(t, 0, remaining.Today)
	assert.Equal(t, 0, remaining.ThisWeek)
	assert.Equal(t, 0, remaining.ForRecipient)
}
