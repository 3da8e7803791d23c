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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreRecency(t *testing.T) {
	score, factor := ScoreRecency(0, false)
	assert.Equal(t, 100, score)
	assert.Equal(t, "never contacted", factor)

	cases := []struct {
		days int
		want int
	}{
		{1, 0},
		{7, 0},
		{8, 20},
		{14, 20},
		{15, 50},
		{30, 50},
		{31, 75},
		{90, 75},
		{91, 95},
		{365, 95},
	}
	for _, c := range cases {
		score, _ := ScoreRecency(c.days, true)
		assert.Equal(t, c.want, score, "days=%d", c.days)
	}
}

func TestScoreICP(t *testing.T) {
	neutral, factors := ScoreICP("", "")
	assert.Equal(t, 50, neutral)
	assert.Contains(t, factors[0], "no job title")

	// Only the single best title keyword counts, so "VP Marketing" gets the
	// vp bonus once plus the function bonus, not vp and vice stacked.
	vpMarketing, _ := ScoreICP("VP Marketing", "")
	assert.Equal(t, 50+25+15, vpMarketing)

	ceo, _ := ScoreICP("CEO", "")
	assert.Equal(t, 80, ceo)

	// Intent keywords stack per match.
	withIntent, _ := ScoreICP("CEO", "wants to sponsor and exhibit")
	assert.Equal(t, clampScore(80+8+8), withIntent)

	assoc, _ := ScoreICP("Associate", "")
	ceoScore, _ := ScoreICP("CEO", "")
	assert.Less(t, assoc, ceoScore)
}

func TestScoreTAM(t *testing.T) {
	neutral, factors := ScoreTAM("", "")
	assert.Equal(t, 50, neutral)
	assert.Contains(t, factors[0], "no company")

	agency, _ := ScoreTAM("Acme Agency", "")
	assert.Equal(t, 70, agency)

	// 16-character name picks up the long-name bonus on top of the single
	// best company-type match.
	long, _ := ScoreTAM("Wonderful Agency", "")
	assert.Equal(t, 75, long)
}

func TestScoreBounds(t *testing.T) {
	icp, _ := ScoreICP("CEO Founder VP Head of Marketing", "sponsor exhibit booth demo budget")
	assert.LessOrEqual(t, icp, 100)
	assert.GreaterOrEqual(t, icp, 0)

	tam, _ := ScoreTAM("Gigantic Agency Brand Media Technology Consulting", "")
	assert.LessOrEqual(t, tam, 100)
}

func TestCompositeScore(t *testing.T) {
	assert.Equal(t, 100, CompositeScore(100, 100, 100))
	assert.Equal(t, 0, CompositeScore(0, 0, 0))
	// 0.5*100 + 0.3*50 + 0.2*50 = 75
	assert.Equal(t, 75, CompositeScore(100, 50, 50))
	// rounding: 0.5*51 + 0.3*50 + 0.2*50 = 50.5 -> 51
	assert.Equal(t, 51, CompositeScore(51, 50, 50))
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierA, TierFor(80))
	assert.Equal(t, TierB, TierFor(79))
	assert.Equal(t, TierB, TierFor(60))
	assert.Equal(t, TierC, TierFor(59))
	assert.Equal(t, TierC, TierFor(40))
	assert.Equal(t, TierD, TierFor(39))
}

func TestStaticPriorityScore(t *testing.T) {
	assert.Equal(t, 0, StaticPriorityScore("", ""))

	// Single best title match: "CEO & Founder" counts 30 once.
	assert.Equal(t, 30, StaticPriorityScore("CEO & Founder", ""))

	// Title + function + company bonus.
	assert.Equal(t, 24+15+10, StaticPriorityScore("VP Marketing", "Acme"))

	// Company alone gets the flat bonus.
	assert.Equal(t, 10, StaticPriorityScore("", "Acme"))
}
