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
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outboundlabs/relay/internal/cache"
	"github.com/outboundlabs/relay/model"
)

// PriorityScorer ranks leads on recency, ICP fit and TAM fit. Scoring is
// deterministic given identical inputs and never fails on missing optional
// fields; absent signals degrade to neutral defaults with a recorded
// factor. Engagement-history lookups are memoized with a TTL so a bulk
// ranking pass does not hammer the provider.
type PriorityScorer struct {
	history  EngagementHistoryProvider
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewPriorityScorer(history EngagementHistoryProvider, historyCache cache.Cache, cacheTTL time.Duration) *PriorityScorer {
	return &PriorityScorer{
		history:  history,
		cache:    historyCache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// lastContact is the cached shape of one history lookup. Found=false is a
// cacheable answer: "never contacted" is the common case for cold leads,
// so Checked marks entries that came from a real lookup.
type lastContact struct {
	Checked bool      `json:"checked"`
	Found   bool      `json:"found"`
	Date    time.Time `json:"date"`
}

// Score computes one lead's full score. The contact's source field doubles
// as free-text context for intent and company-type keywords.
func (s *PriorityScorer) Score(ctx context.Context, contact *model.QueuedContact) *model.QueueScore {
	score := &model.QueueScore{Email: model.NormalizeEmail(contact.Email)}

	recency, recencyFactor, degraded := s.scoreRecency(ctx, contact.Email)
	score.RecencyScore = recency
	score.Degraded = degraded
	score.Factors = append(score.Factors, fmt.Sprintf("recency: %s", recencyFactor))

	icp, icpFactors := model.ScoreICP(contact.JobTitle, contact.Source)
	score.ICPScore = icp
	score.Factors = append(score.Factors, icpFactors...)

	tam, tamFactors := model.ScoreTAM(contact.Company, contact.Source)
	score.TAMScore = tam
	score.Factors = append(score.Factors, tamFactors...)

	score.TotalScore = model.CompositeScore(recency, icp, tam)
	score.Tier = model.TierFor(score.TotalScore)
	return score
}

// Rank scores every contact and returns the list sorted by composite score
// descending. Ties keep arrival order; priority ranks are 1-based.
func (s *PriorityScorer) Rank(ctx context.Context, contacts []*model.QueuedContact) []model.QueueScore {
	scores := make([]model.QueueScore, 0, len(contacts))
	for _, contact := range contacts {
		scores = append(scores, *s.Score(ctx, contact))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalScore > scores[j].TotalScore
	})
	for i := range scores {
		scores[i].Priority = i + 1
	}
	return scores
}

// scoreRecency resolves days-since-last-contact through the cache and the
// history provider. Provider unavailability degrades to a neutral 50.
func (s *PriorityScorer) scoreRecency(ctx context.Context, email string) (int, string, bool) {
	last, err := s.getLastContact(ctx, email)
	if err != nil {
		logrus.Warnf("engagement history unavailable for %s, using neutral recency: %v", email, err)
		return 50, "history unavailable, degraded scoring", true
	}
	if !last.Found {
		score, factor := model.ScoreRecency(0, false)
		return score, factor, false
	}

	days := int(s.now().Sub(last.Date).Hours() / 24)
	score, factor := model.ScoreRecency(days, true)
	return score, factor, false
}

func (s *PriorityScorer) getLastContact(ctx context.Context, email string) (*lastContact, error) {
	if s.history == nil {
		return nil, fmt.Errorf("no engagement history provider configured")
	}

	key := fmt.Sprintf("relay:history:%s", model.NormalizeEmail(email))
	if s.cache != nil {
		cached := &lastContact{}
		if err := s.cache.Get(ctx, key, cached); err == nil && cached.Checked {
			return cached, nil
		}
	}

	date, err := s.history.GetLastContactDate(ctx, email)
	if err != nil {
		return nil, err
	}

	result := &lastContact{Checked: true}
	if date != nil {
		result.Found = true
		result.Date = *date
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			logrus.Warnf("failed to cache history for %s: %v", email, err)
		}
	}
	return result, nil
}
