package performance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vielumine/vertigo/hierarchy"
	"github.com/vielumine/vertigo/policy"
)

func defaultScoring() ScoringConfig {
	return ScoringConfigFromPolicy(policy.DefaultPolicy(1))
}

func TestActivityScoreZeroHistory(t *testing.T) {
	assert.Zero(t, ActivityScore(ActionCounts{}, ActionCounts{}, defaultScoring()))
	assert.Zero(t, ActivityScore(ActionCounts{Warns: 5}, ActionCounts{}, defaultScoring()),
		"no actions over the long window pins the score to zero")
}

func TestActivityScoreBounds(t *testing.T) {
	cfg := defaultScoring()

	cases := []struct {
		counts7, counts30 ActionCounts
	}{
		{ActionCounts{}, ActionCounts{Warns: 1}},
		{ActionCounts{Warns: 1}, ActionCounts{Warns: 1}},
		{ActionCounts{Warns: 12}, ActionCounts{Warns: 45}},
		{ActionCounts{Warns: 100, Bans: 50}, ActionCounts{Warns: 400, Bans: 100}},
		{ActionCounts{Kicks: 1000}, ActionCounts{Kicks: 5000}},
	}

	for _, tc := range cases {
		score := ActivityScore(tc.counts7, tc.counts30, cfg)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestActivityScoreFormula(t *testing.T) {
	cfg := defaultScoring()

	// total7=12, total30=45: raw = (12*0.7 + 45*0.3)/100 = 0.219,
	// ratio = 12/45, score = 0.219 * (0.7 + 0.08) = 0.17082
	score := ActivityScore(ActionCounts{Warns: 12}, ActionCounts{Warns: 45}, cfg)
	assert.InDelta(t, 0.17082, score, 0.0001)

	// fully saturated raw score with an all recent ratio
	score = ActivityScore(ActionCounts{Warns: 200}, ActionCounts{Warns: 200}, cfg)
	assert.InDelta(t, 1.0, score, 0.0001)
}

func TestActivityScoreMoreRecentScoresHigher(t *testing.T) {
	cfg := defaultScoring()

	lazy := ActivityScore(ActionCounts{Warns: 2}, ActionCounts{Warns: 40}, cfg)
	busy := ActivityScore(ActionCounts{Warns: 30}, ActionCounts{Warns: 40}, cfg)
	assert.Greater(t, busy, lazy)
}

func promotableStats() *Stats {
	s := &Stats{
		Level:       hierarchy.LevelModerator,
		Counts7:     ActionCounts{Warns: 12},
		Counts30:    ActionCounts{Warns: 45},
		TenureDays:  35,
		ActiveFlags: 0,
	}
	s.Score = ActivityScore(s.Counts7, s.Counts30, defaultScoring())
	return s
}

func TestEvaluatePromotionEligible(t *testing.T) {
	crit, ok := DefaultPromotionCriteria(hierarchy.LevelModerator)
	require.True(t, ok)
	assert.Equal(t, hierarchy.LevelSeniorMod, crit.To)

	confidence, reason := EvaluatePromotion(promotableStats(), crit)
	assert.Greater(t, confidence, 0.5)
	assert.LessOrEqual(t, confidence, 1.0)
	assert.Contains(t, reason, "meets all gates")
}

func TestEvaluatePromotionGates(t *testing.T) {
	crit, _ := DefaultPromotionCriteria(hierarchy.LevelModerator)

	cases := []struct {
		name   string
		mutate func(*Stats)
		reason string
	}{
		{"too few recent actions", func(s *Stats) { s.Counts7 = ActionCounts{Warns: 9} }, "7 days"},
		{"too few monthly actions", func(s *Stats) { s.Counts30 = ActionCounts{Warns: 39} }, "30 days"},
		{"too little tenure", func(s *Stats) { s.TenureDays = 29 }, "tenure"},
		{"too many flags", func(s *Stats) { s.ActiveFlags = 2 }, "flags"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stats := promotableStats()
			tc.mutate(stats)

			confidence, reason := EvaluatePromotion(stats, crit)
			assert.Zero(t, confidence)
			assert.Contains(t, reason, tc.reason)
		})
	}
}

func TestEvaluatePromotionGateOrder(t *testing.T) {
	crit, _ := DefaultPromotionCriteria(hierarchy.LevelModerator)

	// multiple failing gates name the first one only
	stats := promotableStats()
	stats.Counts7 = ActionCounts{}
	stats.TenureDays = 0

	confidence, reason := EvaluatePromotion(stats, crit)
	assert.Zero(t, confidence)
	assert.Contains(t, reason, "7 days")
	assert.NotContains(t, reason, "tenure")
}

func TestEvaluatePromotionSoftPenalty(t *testing.T) {
	crit, _ := DefaultPromotionCriteria(hierarchy.LevelModerator)
	crit.MinActivityScore = 0.99

	stats := promotableStats()
	penalized, _ := EvaluatePromotion(stats, crit)

	crit.MinActivityScore = 0
	unpenalized, _ := EvaluatePromotion(stats, crit)

	assert.InDelta(t, unpenalized*0.7, penalized, 0.0001,
		"a low activity score shades confidence, it does not gate")
}

func TestEvaluateDemotion(t *testing.T) {
	pol := policy.DefaultPolicy(1)
	crit := DemotionCriteriaForLevel(pol, hierarchy.LevelModerator)
	assert.Equal(t, 2, crit.Max7)
	assert.Equal(t, 10, crit.Max30)

	// active member, nothing to flag
	stats := promotableStats()
	confidence, issues := EvaluateDemotion(stats, crit)
	assert.Zero(t, confidence)
	assert.Empty(t, issues)

	// a single issue is not enough
	stats = &Stats{Counts7: ActionCounts{Warns: 1}, Counts30: ActionCounts{Warns: 20}, Score: 0.3}
	confidence, issues = EvaluateDemotion(stats, crit)
	assert.Zero(t, confidence)
	assert.Len(t, issues, 1)

	// inactivity on both windows plus a dead score
	stats = &Stats{Counts7: ActionCounts{}, Counts30: ActionCounts{Warns: 2}, Score: 0.01}
	confidence, issues = EvaluateDemotion(stats, crit)
	assert.Len(t, issues, 3)
	assert.InDelta(t, 0.9, confidence, 0.0001)

	// every issue at once caps at 0.95
	stats = &Stats{Score: 0.0, ActiveFlags: 2}
	confidence, issues = EvaluateDemotion(stats, crit)
	assert.Len(t, issues, 4)
	assert.InDelta(t, 0.95, confidence, 0.0001)
}
