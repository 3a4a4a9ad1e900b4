// Package performance turns moderation action history into activity scores
// and promotion or demotion suggestions for human review. Suggestions are
// advisory, reviewing one never mutates roles or sanctions.
package performance

import (
	"fmt"
	"math"

	"github.com/vielumine/vertigo/hierarchy"
	"github.com/vielumine/vertigo/policy"
)

// ActionCounts is a staff member's moderation action volume over one window.
// Kicks and bans are counted from modlog entries written by the command
// layer, they are not sanction kinds of their own.
type ActionCounts struct {
	Warns int
	Mutes int
	Kicks int
	Bans  int
}

func (c ActionCounts) Total() int {
	return c.Warns + c.Mutes + c.Kicks + c.Bans
}

// ScoringConfig carries the normalization constants. They are inherited
// heuristics kept configurable per guild, not validated tuning.
type ScoringConfig struct {
	Normalizer    float64
	RecentWeight  float64
	HistoryWeight float64
}

func ScoringConfigFromPolicy(pol *policy.GuildPolicy) ScoringConfig {
	return ScoringConfig{
		Normalizer:    pol.ScoreNormalizer,
		RecentWeight:  pol.ScoreRecentWeight,
		HistoryWeight: pol.ScoreHistoryWeight,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// ActivityScore combines recent and historical action volume into a [0, 1]
// heuristic. No actions over the long window means zero regardless of the
// rest.
func ActivityScore(counts7, counts30 ActionCounts, cfg ScoringConfig) float64 {
	total7 := float64(counts7.Total())
	total30 := float64(counts30.Total())

	if total30 == 0 {
		return 0
	}

	recentRatio := total7 / math.Max(1, total30)
	rawScore := math.Min(1, (total7*cfg.RecentWeight+total30*cfg.HistoryWeight)/cfg.Normalizer)

	return clamp01(rawScore * (0.7 + recentRatio*0.3))
}

// Stats is everything the evaluators need about one staff member.
type Stats struct {
	GuildID int64
	UserID  int64
	Level   hierarchy.Level

	Counts7  ActionCounts
	Counts30 ActionCounts

	TenureDays  int
	ActiveFlags int

	Score float64
}

// PromotionCriteria are the gates for one level transition. The hard gates
// (minimums, tenure, flags) decide eligibility outright, the activity score
// only shades the confidence.
type PromotionCriteria struct {
	From hierarchy.Level
	To   hierarchy.Level

	Min7          int
	Min30         int
	MinTenureDays int
	MaxFlags      int

	MinActivityScore float64
}

// DefaultPromotionCriteria returns the built in transition gates for a
// level, false when the level has nowhere to be promoted to.
func DefaultPromotionCriteria(from hierarchy.Level) (PromotionCriteria, bool) {
	switch from {
	case hierarchy.LevelModerator:
		return PromotionCriteria{
			From: hierarchy.LevelModerator, To: hierarchy.LevelSeniorMod,
			Min7: 10, Min30: 40, MinTenureDays: 30, MaxFlags: 1,
			MinActivityScore: 0.15,
		}, true
	case hierarchy.LevelSeniorMod:
		return PromotionCriteria{
			From: hierarchy.LevelSeniorMod, To: hierarchy.LevelHeadMod,
			Min7: 8, Min30: 30, MinTenureDays: 60, MaxFlags: 0,
			MinActivityScore: 0.2,
		}, true
	}

	return PromotionCriteria{}, false
}

// EvaluatePromotion checks the hard gates in a fixed order, the first
// failing one is named in the reason with confidence zero. When all pass,
// confidence starts at one, takes a soft 0.7 penalty if the activity score
// is under the criteria minimum and is then scaled by the score itself.
func EvaluatePromotion(stats *Stats, crit PromotionCriteria) (confidence float64, reason string) {
	if stats.Counts7.Total() < crit.Min7 {
		return 0, fmt.Sprintf("only %d actions in the last 7 days, needs %d", stats.Counts7.Total(), crit.Min7)
	}

	if stats.Counts30.Total() < crit.Min30 {
		return 0, fmt.Sprintf("only %d actions in the last 30 days, needs %d", stats.Counts30.Total(), crit.Min30)
	}

	if stats.TenureDays < crit.MinTenureDays {
		return 0, fmt.Sprintf("only %d days of tenure, needs %d", stats.TenureDays, crit.MinTenureDays)
	}

	if stats.ActiveFlags > crit.MaxFlags {
		return 0, fmt.Sprintf("%d active flags, at most %d allowed", stats.ActiveFlags, crit.MaxFlags)
	}

	confidence = 1.0
	if stats.Score < crit.MinActivityScore {
		confidence *= 0.7
	}

	// activity scaling, floored so meeting every hard gate always lands in
	// the reviewable range
	confidence *= math.Min(1, 0.5+stats.Score*1.2)

	reason = fmt.Sprintf("meets all gates for %s: %d actions over 7 days, %d over 30, activity score %.2f",
		crit.To.String(), stats.Counts7.Total(), stats.Counts30.Total(), stats.Score)
	return confidence, reason
}

// DemotionCriteria are the inactivity bounds for one level, derived from the
// guild's weekly quota for it.
type DemotionCriteria struct {
	Max7     int
	Max30    int
	MinScore float64
}

// DemotionCriteriaForLevel derives the bounds from the policy quota for the
// level.
func DemotionCriteriaForLevel(pol *policy.GuildPolicy, level hierarchy.Level) DemotionCriteria {
	quota := pol.QuotaModerator
	switch level {
	case hierarchy.LevelSeniorMod:
		quota = pol.QuotaSeniorMod
	case hierarchy.LevelHeadMod:
		quota = pol.QuotaHeadMod
	}

	max7 := quota / 10
	if max7 < 1 {
		max7 = 1
	}

	return DemotionCriteria{
		Max7:     max7,
		Max30:    quota / 2,
		MinScore: 0.1,
	}
}

// EvaluateDemotion counts inactivity and accountability issues. Two or more
// warrant a demotion warning, confidence growing with the issue count.
func EvaluateDemotion(stats *Stats, crit DemotionCriteria) (confidence float64, issues []string) {
	if stats.Counts7.Total() <= crit.Max7 {
		issues = append(issues, fmt.Sprintf("only %d actions in the last 7 days", stats.Counts7.Total()))
	}

	if stats.Counts30.Total() <= crit.Max30 {
		issues = append(issues, fmt.Sprintf("only %d actions in the last 30 days", stats.Counts30.Total()))
	}

	if stats.Score < crit.MinScore {
		issues = append(issues, fmt.Sprintf("activity score %.2f is below %.2f", stats.Score, crit.MinScore))
	}

	if stats.ActiveFlags >= 2 {
		issues = append(issues, fmt.Sprintf("%d active staff flags", stats.ActiveFlags))
	}

	if len(issues) < 2 {
		return 0, issues
	}

	return math.Min(0.95, float64(len(issues))*0.3), issues
}
