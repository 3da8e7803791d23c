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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("drf")
	assert.True(t, strings.HasPrefix(id, "drf_"))
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("drf"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@acme.com", NormalizeEmail("  Jane@Acme.COM "))
	assert.Equal(t, "jane@acme.com", NormalizeEmail("jane@acme.com"))
}

func TestDayBucket(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	local := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, "2025-03-11", DayBucket(local))

	utc := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-10", DayBucket(utc))
}

func TestWeekBucket(t *testing.T) {
	// 2025-03-10 is a Monday; the whole ISO week maps onto it.
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-10", WeekBucket(monday))
	assert.Equal(t, "2025-03-10", WeekBucket(sunday))

	// The next Monday starts a new bucket.
	nextMonday := time.Date(2025, 3, 17, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, "2025-03-17", WeekBucket(nextMonday))
}

func TestRecipientWeekBucket(t *testing.T) {
	wednesday := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "jane@acme.com:2025-03-10", RecipientWeekBucket("jane@acme.com", wednesday))
}
