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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	ContactStatusQueued     = "QUEUED"
	ContactStatusProcessing = "PROCESSING"
	ContactStatusCompleted  = "COMPLETED"
	ContactStatusFailed     = "FAILED"
)

// QueuedContact is a lead waiting in the bulk-processing backlog. Email is
// unique (case-insensitive) within the backlog. The static priority score is
// computed once at insertion from static signals only; the full scorer adds
// live engagement recency on top when ranking.
type QueuedContact struct {
	ContactID           string    `json:"contact_id"`
	Email               string    `json:"email"`
	Name                string    `json:"name,omitempty"`
	Company             string    `json:"company,omitempty"`
	JobTitle            string    `json:"job_title,omitempty"`
	Source              string    `json:"source,omitempty"`
	StaticPriorityScore int       `json:"static_priority_score"`
	Status              string    `json:"status"`
	QueuedAt            time.Time `json:"queued_at"`
	ProcessedAt         time.Time `json:"processed_at,omitempty"`
	ErrorMessage        string    `json:"error_message,omitempty"`
}

// NewContactRequest carries the fields callers supply per contact when
// loading a batch into the backlog.
type NewContactRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	JobTitle string `json:"job_title,omitempty"`
	Source   string `json:"source,omitempty"`
}

func (r NewContactRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
	)
}

// staticTitleWeights maps title keywords to their static score contribution.
// Only the single best match counts.
var staticTitleWeights = map[string]int{
	"ceo":       30,
	"founder":   30,
	"president": 28,
	"cmo":       26,
	"vp":        24,
	"vice":      24,
	"head":      22,
	"director":  20,
	"manager":   12,
	"lead":      10,
}

// staticFunctionWeights maps business-function keywords to their static
// score contribution. Only the single best match counts.
var staticFunctionWeights = map[string]int{
	"marketing":    15,
	"events":       15,
	"partnership":  12,
	"sponsorship":  12,
	"sales":        10,
	"growth":       10,
	"business dev": 8,
}

// staticCompanyBonus is the flat bonus for contacts with a known company.
const staticCompanyBonus = 10

// StaticPriorityScore computes the insertion-time score from job title and
// company alone. The full scorer layers live engagement recency on top.
func StaticPriorityScore(jobTitle, company string) int {
	title := strings.ToLower(jobTitle)
	score := 0

	best := 0
	for keyword, weight := range staticTitleWeights {
		if strings.Contains(title, keyword) && weight > best {
			best = weight
		}
	}
	score += best

	best = 0
	for keyword, weight := range staticFunctionWeights {
		if strings.Contains(title, keyword) && weight > best {
			best = weight
		}
	}
	score += best

	if strings.TrimSpace(company) != "" {
		score += staticCompanyBonus
	}
	return score
}
