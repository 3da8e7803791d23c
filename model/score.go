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
	"math"
	"strings"
)

// Scoring axis weights. Recency dominates because a recently contacted lead
// is worthless regardless of fit.
const (
	RecencyWeight = 0.5
	ICPWeight     = 0.3
	TAMWeight     = 0.2
)

const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
	TierD = "D"
)

// QueueScore is the ephemeral output of one scoring pass. It is recomputed
// on demand and never persisted.
type QueueScore struct {
	Email        string   `json:"email"`
	RecencyScore int      `json:"recency_score"`
	ICPScore     int      `json:"icp_score"`
	TAMScore     int      `json:"tam_score"`
	TotalScore   int      `json:"total_score"`
	Tier         string   `json:"tier"`
	Priority     int      `json:"priority,omitempty"`
	Degraded     bool     `json:"degraded,omitempty"`
	Factors      []string `json:"factors"`
}

// icpTitleTiers gives the single-best-match title bonus. Executive titles
// outrank managers, which outrank individual contributors.
var icpTitleTiers = map[string]int{
	"ceo":       30,
	"founder":   30,
	"cmo":       28,
	"president": 28,
	"vp":        25,
	"vice":      25,
	"head":      22,
	"director":  20,
	"manager":   12,
	"lead":      8,
	"associate": 4,
}

var icpFunctionKeywords = map[string]int{
	"marketing":   15,
	"events":      15,
	"sponsorship": 14,
	"partnership": 12,
	"brand":       10,
	"growth":      10,
	"sales":       8,
}

// icpIntentKeywords are buying-intent signals found in free-text context.
// Each match adds its bonus, unlike the single-best title/function rules.
var icpIntentKeywords = map[string]int{
	"sponsor": 8,
	"exhibit": 8,
	"booth":   6,
	"demo":    4,
	"budget":  4,
}

var tamCompanyTypeKeywords = map[string]int{
	"agency":     20,
	"brand":      18,
	"media":      15,
	"technology": 12,
	"software":   12,
	"consulting": 10,
	"studio":     8,
}

const tamLongNameBonus = 5
const tamLongNameThreshold = 15

// ScoreRecency maps days since last contact to a 0-100 recency score.
// A lead never contacted scores full marks.
func ScoreRecency(daysSinceContact int, everContacted bool) (int, string) {
	if !everContacted {
		return 100, "never contacted"
	}
	switch {
	case daysSinceContact <= 7:
		return 0, fmt.Sprintf("contacted %d days ago (cooling off)", daysSinceContact)
	case daysSinceContact <= 14:
		return 20, fmt.Sprintf("contacted %d days ago", daysSinceContact)
	case daysSinceContact <= 30:
		return 50, fmt.Sprintf("contacted %d days ago", daysSinceContact)
	case daysSinceContact <= 90:
		return 75, fmt.Sprintf("contacted %d days ago", daysSinceContact)
	default:
		return 95, fmt.Sprintf("last contact %d days ago", daysSinceContact)
	}
}

// ScoreICP computes ideal-customer-profile fit from the job title and any
// free-text context. Starts neutral at 50; missing signals leave it there.
func ScoreICP(jobTitle, context string) (int, []string) {
	score := 50
	var factors []string

	title := strings.ToLower(jobTitle)
	if title == "" {
		factors = append(factors, "no job title, neutral ICP")
	} else {
		bestBonus, bestKeyword := 0, ""
		for keyword, bonus := range icpTitleTiers {
			if strings.Contains(title, keyword) && bonus > bestBonus {
				bestBonus, bestKeyword = bonus, keyword
			}
		}
		if bestBonus > 0 {
			score += bestBonus
			factors = append(factors, fmt.Sprintf("title match %q (+%d)", bestKeyword, bestBonus))
		}

		bestBonus, bestKeyword = 0, ""
		for keyword, bonus := range icpFunctionKeywords {
			if strings.Contains(title, keyword) && bonus > bestBonus {
				bestBonus, bestKeyword = bonus, keyword
			}
		}
		if bestBonus > 0 {
			score += bestBonus
			factors = append(factors, fmt.Sprintf("function match %q (+%d)", bestKeyword, bestBonus))
		}
	}

	ctx := strings.ToLower(context)
	if ctx != "" {
		for keyword, bonus := range icpIntentKeywords {
			if strings.Contains(ctx, keyword) {
				score += bonus
				factors = append(factors, fmt.Sprintf("intent signal %q (+%d)", keyword, bonus))
			}
		}
	}

	return clampScore(score), factors
}

// ScoreTAM computes addressable-market fit from the company name and context.
// Starts neutral at 50; only the single best company-type keyword counts.
func ScoreTAM(company, context string) (int, []string) {
	score := 50
	var factors []string

	name := strings.TrimSpace(company)
	if name == "" {
		factors = append(factors, "no company, neutral TAM")
		return score, factors
	}

	haystack := strings.ToLower(name + " " + context)
	bestBonus, bestKeyword := 0, ""
	for keyword, bonus := range tamCompanyTypeKeywords {
		if strings.Contains(haystack, keyword) && bonus > bestBonus {
			bestBonus, bestKeyword = bonus, keyword
		}
	}
	if bestBonus > 0 {
		score += bestBonus
		factors = append(factors, fmt.Sprintf("company type %q (+%d)", bestKeyword, bestBonus))
	}

	if len(name) >= tamLongNameThreshold {
		score += tamLongNameBonus
		factors = append(factors, fmt.Sprintf("established company name (+%d)", tamLongNameBonus))
	}

	return clampScore(score), factors
}

// CompositeScore combines the three axes using the fixed weights.
func CompositeScore(recency, icp, tam int) int {
	total := float64(recency)*RecencyWeight + float64(icp)*ICPWeight + float64(tam)*TAMWeight
	return int(math.Round(total))
}

// TierFor buckets a composite score into the A-D priority tiers.
func TierFor(total int) string {
	switch {
	case total >= 80:
		return TierA
	case total >= 60:
		return TierB
	case total >= 40:
		return TierC
	default:
		return TierD
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
