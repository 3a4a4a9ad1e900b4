// Package moderation is the service facade the command and event layer
// calls into. It validates, persists, applies side effects and drives the
// escalation engine, the callers only deal in ids and plain values.
package moderation

import (
	"context"

	"emperror.dev/errors"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/escalation"
	"github.com/vielumine/vertigo/hierarchy"
	"github.com/vielumine/vertigo/performance"
	"github.com/vielumine/vertigo/platform"
	"github.com/vielumine/vertigo/policy"
	"github.com/vielumine/vertigo/sanctions"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Moderation",
		SysName:  "moderation",
		Category: common.PluginCategoryModeration,
	}
}

// ErrTargetImmune is returned by GuardSanction when the staff immunity rule
// blocks the action, safe to relay to the user.
var ErrTargetImmune = errors.Sentinel("target is staff and can only be sanctioned by an admin")

// Service bundles the accountability components behind the inbound
// interface. Built once at startup.
type Service struct {
	store       sanctions.Store
	policies    policy.Store
	engine      *escalation.Engine
	effector    platform.Effector
	analyzer    *performance.Analyzer
	suggestions performance.SuggestionStore
}

func NewService(store sanctions.Store, policies policy.Store, engine *escalation.Engine, effector platform.Effector, analyzer *performance.Analyzer, suggestions performance.SuggestionStore) *Service {
	return &Service{
		store:       store,
		policies:    policies,
		engine:      engine,
		effector:    effector,
		analyzer:    analyzer,
		suggestions: suggestions,
	}
}

// ResolveLevel is a passthrough to the hierarchy resolver, here so callers
// need only the facade.
func (s *Service) ResolveLevel(member hierarchy.Member, pol *policy.GuildPolicy) hierarchy.Level {
	return hierarchy.ResolveLevel(member, pol)
}

// GuardSanction enforces the staff immunity rule. The command layer calls
// it before issuing anything, the core itself never inspects caller
// identity beyond the ids handed to it.
func (s *Service) GuardSanction(ctx context.Context, guildID int64, actor, target hierarchy.Member) error {
	pol, err := s.policies.Get(ctx, guildID)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	actorLevel := hierarchy.ResolveLevel(actor, pol)
	targetLevel := hierarchy.ResolveLevel(target, pol)

	if !hierarchy.CanActOn(actorLevel, targetLevel) {
		return ErrTargetImmune
	}

	return nil
}

// ActiveFlagCount returns the subject's active staff flag count.
func (s *Service) ActiveFlagCount(ctx context.Context, guildID, subjectID int64) (int, error) {
	return s.store.ActiveCount(ctx, guildID, subjectID, sanctions.KindStaffFlag)
}

// FlagState returns where the subject sits relative to the termination
// threshold.
func (s *Service) FlagState(ctx context.Context, guildID, subjectID int64) (escalation.State, int, error) {
	return s.engine.State(ctx, guildID, subjectID)
}

// AnalyzeStaff runs the scoring engine over the guild's staff on demand.
func (s *Service) AnalyzeStaff(ctx context.Context, guildID int64) (*performance.Report, error) {
	return s.analyzer.AnalyzeGuild(ctx, guildID)
}

// ReviewSuggestion resolves a pending promotion or demotion suggestion.
// Advisory only, no role or sanction changes happen here.
func (s *Service) ReviewSuggestion(ctx context.Context, suggestionID, reviewerID int64, approve bool) error {
	return s.analyzer.ReviewSuggestion(ctx, suggestionID, reviewerID, approve)
}

// PendingSuggestions lists the guild's suggestions awaiting review.
func (s *Service) PendingSuggestions(ctx context.Context, guildID int64) ([]*performance.Suggestion, error) {
	return s.suggestions.ListPending(ctx, guildID)
}

// SanctionHistory returns the subject's record, newest first.
func (s *Service) SanctionHistory(ctx context.Context, guildID, subjectID int64, includeInactive bool, limit int) ([]*sanctions.Sanction, error) {
	return s.store.ListBySubject(ctx, guildID, subjectID, includeInactive, limit)
}

// Modlog pages through the guild's audit trail, newest first.
func (s *Service) Modlog(ctx context.Context, guildID int64, limit int, before int64) ([]*sanctions.ModlogEntry, error) {
	return s.store.ListLog(ctx, guildID, limit, before)
}

// TopWarned ranks the guild's subjects by all time warning count.
func (s *Service) TopWarned(ctx context.Context, guildID int64, offset, limit int) ([]*sanctions.WarnRankEntry, error) {
	return s.store.TopWarned(ctx, guildID, offset, limit)
}
