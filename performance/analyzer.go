package performance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/common/config"
	"github.com/vielumine/vertigo/hierarchy"
	"github.com/vielumine/vertigo/platform"
	"github.com/vielumine/vertigo/policy"
	"github.com/vielumine/vertigo/sanctions"
)

var logger = common.GetPluginLogger(&Analyzer{})

var confSweepInterval = config.RegisterOption("vertigo.performance.sweep_interval", "Minutes between staff analysis sweeps", 360)

var metricsSuggestions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vertigo_performance_suggestions_total",
	Help: "Persisted promotion and demotion suggestions",
}, []string{"kind"})

// Report is the outcome of analyzing one guild's staff.
type Report struct {
	GuildID    int64
	TotalStaff int
	Promotions int
	Warnings   int

	Suggestions []*Suggestion
}

// Analyzer computes activity scores for a guild's staff and persists the
// suggestions worth reviewing. It registers as a background worker sweeping
// every guild with a saved policy.
type Analyzer struct {
	store       sanctions.Store
	policies    policy.Store
	suggestions SuggestionStore
	directory   platform.Directory

	sweepInterval time.Duration
	clock         func() time.Time

	sweeping int32
	stop     chan struct{}
}

func (a *Analyzer) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Performance Analyzer",
		SysName:  "performance",
		Category: common.PluginCategoryAccountability,
	}
}

func NewAnalyzer(store sanctions.Store, policies policy.Store, suggestions SuggestionStore, directory platform.Directory) *Analyzer {
	return &Analyzer{
		store:       store,
		policies:    policies,
		suggestions: suggestions,
		directory:   directory,

		sweepInterval: time.Minute * time.Duration(confSweepInterval.GetInt()),
		clock:         time.Now,
		stop:          make(chan struct{}),
	}
}

// WithClock replaces the time source, for deterministic tests.
func (a *Analyzer) WithClock(clock func() time.Time) *Analyzer {
	a.clock = clock
	return a
}

func (a *Analyzer) RunBackgroundWorker() {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.runSweep(context.Background())
		case <-a.stop:
			return
		}
	}
}

func (a *Analyzer) StopBackgroundWorker(wg *sync.WaitGroup) {
	close(a.stop)
	wg.Done()
}

// runSweep analyzes every guild with a saved policy. A sweep still running
// when the next is due is skipped.
func (a *Analyzer) runSweep(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&a.sweeping, 0, 1) {
		logger.Warn("previous analysis sweep still running, skipping")
		return
	}
	defer atomic.StoreInt32(&a.sweeping, 0)

	guilds, err := a.policies.ListGuilds(ctx)
	if err != nil {
		logger.WithError(err).Error("failed listing guilds for the analysis sweep")
		return
	}

	for _, guildID := range guilds {
		_, err := a.AnalyzeGuild(ctx, guildID)
		if err != nil {
			logger.WithError(err).WithField("guild", guildID).Error("failed analyzing guild staff")
		}
	}
}

// AnalyzeGuild scores every staff member and persists the suggestions that
// clear the confidence floor. Admins are counted but never evaluated, there
// is nothing to promote them to and demotion of admins is a human decision.
func (a *Analyzer) AnalyzeGuild(ctx context.Context, guildID int64) (*Report, error) {
	pol, err := a.policies.Get(ctx, guildID)
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	members, err := a.directory.ListStaffMembers(ctx, guildID)
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	report := &Report{GuildID: guildID}

	for _, member := range members {
		level := hierarchy.ResolveLevel(member.Member, pol)
		if !level.IsStaff() {
			continue
		}

		report.TotalStaff++
		if level == hierarchy.LevelAdmin {
			continue
		}

		stats, err := a.collectStats(ctx, pol, guildID, member, level)
		if err != nil {
			logger.WithError(err).WithField("guild", guildID).WithField("user", member.UserID).
				Error("failed collecting staff stats, skipping member")
			continue
		}

		a.evaluateMember(ctx, pol, stats, report)
	}

	return report, nil
}

func (a *Analyzer) collectStats(ctx context.Context, pol *policy.GuildPolicy, guildID int64, member *platform.StaffMember, level hierarchy.Level) (*Stats, error) {
	now := a.clock()

	counts7, err := a.countWindow(ctx, guildID, member.UserID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	counts30, err := a.countWindow(ctx, guildID, member.UserID, now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, err
	}

	activeFlags, err := a.store.ActiveCount(ctx, guildID, member.UserID, sanctions.KindStaffFlag)
	if err != nil {
		return nil, err
	}

	tenure := 0
	if !member.JoinedAt.IsZero() {
		tenure = int(now.Sub(member.JoinedAt).Hours() / 24)
	}

	stats := &Stats{
		GuildID:     guildID,
		UserID:      member.UserID,
		Level:       level,
		Counts7:     counts7,
		Counts30:    counts30,
		TenureDays:  tenure,
		ActiveFlags: activeFlags,
	}
	stats.Score = ActivityScore(counts7, counts30, ScoringConfigFromPolicy(pol))

	return stats, nil
}

// countWindow counts the member's actions since the window start. Kicks and
// bans are modlog entries appended by the command layer, they have no
// sanction kind of their own but score all the same.
func (a *Analyzer) countWindow(ctx context.Context, guildID, userID int64, since time.Time) (ActionCounts, error) {
	var counts ActionCounts
	var err error

	if counts.Warns, err = a.store.CountLogActions(ctx, guildID, userID, []string{sanctions.ActionWarning}, since); err != nil {
		return counts, err
	}
	if counts.Mutes, err = a.store.CountLogActions(ctx, guildID, userID, []string{sanctions.ActionMute}, since); err != nil {
		return counts, err
	}
	if counts.Kicks, err = a.store.CountLogActions(ctx, guildID, userID, []string{sanctions.ActionKick}, since); err != nil {
		return counts, err
	}
	if counts.Bans, err = a.store.CountLogActions(ctx, guildID, userID, []string{sanctions.ActionBan}, since); err != nil {
		return counts, err
	}

	return counts, nil
}

func (a *Analyzer) evaluateMember(ctx context.Context, pol *policy.GuildPolicy, stats *Stats, report *Report) {
	if crit, ok := DefaultPromotionCriteria(stats.Level); ok {
		confidence, reason := EvaluatePromotion(stats, crit)
		if confidence >= MinPersistConfidence {
			persisted := a.persist(ctx, &Suggestion{
				GuildID:        stats.GuildID,
				UserID:         stats.UserID,
				Type:           TypePromotion,
				CurrentLevel:   stats.Level,
				SuggestedLevel: crit.To,
				Confidence:     confidence,
				Reason:         reason,
			}, report)
			if persisted {
				report.Promotions++
			}
		}
	}

	confidence, issues := EvaluateDemotion(stats, DemotionCriteriaForLevel(pol, stats.Level))
	if confidence >= MinPersistConfidence {
		reason := "underperforming: " + issues[0]
		for _, issue := range issues[1:] {
			reason += "; " + issue
		}

		persisted := a.persist(ctx, &Suggestion{
			GuildID:        stats.GuildID,
			UserID:         stats.UserID,
			Type:           TypeDemotionWarning,
			CurrentLevel:   stats.Level,
			SuggestedLevel: stats.Level - 1,
			Confidence:     confidence,
			Reason:         reason,
		}, report)
		if persisted {
			report.Warnings++
		}
	}
}

// persist inserts the suggestion unless an equivalent one is already
// pending. Reports whether a row was written or an equivalent was pending
// already, a store failure only logs.
func (a *Analyzer) persist(ctx context.Context, suggestion *Suggestion, report *Report) bool {
	exists, err := a.suggestions.PendingExists(ctx, suggestion.GuildID, suggestion.UserID, suggestion.Type)
	if err != nil {
		logger.WithError(err).Error("failed checking for a pending suggestion")
		return false
	}

	if exists {
		return true
	}

	_, err = a.suggestions.Insert(ctx, suggestion)
	if err != nil {
		logger.WithError(err).Error("failed persisting a suggestion")
		return false
	}

	report.Suggestions = append(report.Suggestions, suggestion)
	metricsSuggestions.With(prometheus.Labels{"kind": string(suggestion.Type)}).Inc()
	return true
}

// ReviewSuggestion resolves a pending suggestion. Approval is advisory, any
// actual role change is the reviewer's to carry out through the platform.
func (a *Analyzer) ReviewSuggestion(ctx context.Context, id, reviewerID int64, approve bool) error {
	status := StatusDenied
	if approve {
		status = StatusApproved
	}

	return a.suggestions.SetStatus(ctx, id, reviewerID, status)
}
