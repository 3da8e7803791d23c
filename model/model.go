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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID prefixed with a module name,
// e.g. "drf_9f2c..." for drafts and "cnt_4a1b..." for queued contacts.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// NormalizeEmail lowercases and trims an email address so every component
// that keys state by recipient uses the same form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DayBucket returns the fixed calendar bucket key for the UTC day containing t.
func DayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WeekBucket returns the fixed calendar bucket key for the ISO week containing t.
// Weeks start on Monday, in UTC.
func WeekBucket(t time.Time) string {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return monday.Format("2006-01-02")
}

// RecipientWeekBucket returns the bucket key for the per-recipient weekly quota.
func RecipientWeekBucket(recipient string, t time.Time) string {
	return fmt.Sprintf("%s:%s", NormalizeEmail(recipient), WeekBucket(t))
}
