// Package policy holds the per guild configuration rows: the role sets
// backing each permission level, sanction durations, the flag threshold and
// the scoring knobs.
package policy

import (
	"time"

	"emperror.dev/errors"
	"github.com/lib/pq"

	"github.com/vielumine/vertigo/common"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Guild Policy",
		SysName:  "guild_policy",
		Category: common.PluginCategoryCore,
	}
}

func RegisterPlugin(core *common.Core) {
	core.RegisterPlugin(&Plugin{})
	core.InitSchemas("guild_policy", DBSchemas...)
}

// Defaults applied when a guild has no stored policy, or for the fields it
// left zero.
const (
	DefaultWarnDays       = 14
	DefaultFlagDays       = 30
	DefaultMuteMinutes    = 10
	DefaultSuspensionDays = 7
	DefaultMaxFlags       = 5

	DefaultQuotaModerator = 20
	DefaultQuotaSeniorMod = 15
	DefaultQuotaHeadMod   = 10

	// see the scoring engine for how these feed the activity score, they are
	// undocumented heuristics kept configurable rather than tuned
	DefaultScoreNormalizer    = 100
	DefaultScoreRecentWeight  = 0.7
	DefaultScoreHistoryWeight = 0.3
)

// GuildPolicy is one guild's configuration row.
type GuildPolicy struct {
	GuildID   int64     `db:"guild_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	AdminRoles     pq.Int64Array `db:"admin_roles"`
	HeadModRoles   pq.Int64Array `db:"head_mod_roles"`
	SeniorModRoles pq.Int64Array `db:"senior_mod_roles"`
	ModRoles       pq.Int64Array `db:"mod_roles"`

	WarnDays       int64 `db:"warn_days"`
	FlagDays       int64 `db:"flag_days"`
	MuteMinutes    int64 `db:"mute_minutes"`
	SuspensionDays int64 `db:"suspension_days"`

	// active staff flags at which the termination workflow fires
	MaxFlags int `db:"max_flags"`

	// advisory weekly action quotas per level, the scoring engine derives
	// its inactivity thresholds from them
	QuotaModerator int `db:"quota_moderator"`
	QuotaSeniorMod int `db:"quota_senior_mod"`
	QuotaHeadMod   int `db:"quota_head_mod"`

	ScoreNormalizer    float64 `db:"score_normalizer"`
	ScoreRecentWeight  float64 `db:"score_recent_weight"`
	ScoreHistoryWeight float64 `db:"score_history_weight"`
}

// DefaultPolicy returns the policy used for guilds that never saved one.
func DefaultPolicy(guildID int64) *GuildPolicy {
	return &GuildPolicy{
		GuildID:        guildID,
		WarnDays:       DefaultWarnDays,
		FlagDays:       DefaultFlagDays,
		MuteMinutes:    DefaultMuteMinutes,
		SuspensionDays: DefaultSuspensionDays,
		MaxFlags:       DefaultMaxFlags,

		QuotaModerator: DefaultQuotaModerator,
		QuotaSeniorMod: DefaultQuotaSeniorMod,
		QuotaHeadMod:   DefaultQuotaHeadMod,

		ScoreNormalizer:    DefaultScoreNormalizer,
		ScoreRecentWeight:  DefaultScoreRecentWeight,
		ScoreHistoryWeight: DefaultScoreHistoryWeight,
	}
}

func (p *GuildPolicy) WarnDuration() time.Duration {
	return time.Duration(p.WarnDays) * 24 * time.Hour
}

func (p *GuildPolicy) FlagDuration() time.Duration {
	return time.Duration(p.FlagDays) * 24 * time.Hour
}

func (p *GuildPolicy) MuteDuration() time.Duration {
	return time.Duration(p.MuteMinutes) * time.Minute
}

func (p *GuildPolicy) SuspensionDuration() time.Duration {
	return time.Duration(p.SuspensionDays) * 24 * time.Hour
}

// StaffTierRoles is the union of every staff level's role set, the roles the
// termination workflow strips.
func (p *GuildPolicy) StaffTierRoles() []int64 {
	return common.MergeInt64Slices(p.ModRoles, p.SeniorModRoles, p.HeadModRoles, p.AdminRoles)
}

// Validate rejects values that would break the state machines downstream.
func (p *GuildPolicy) Validate() error {
	if p.GuildID == 0 {
		return errors.New("missing guild id")
	}

	if p.MaxFlags < 1 {
		return errors.New("max flags must be at least 1")
	}

	if p.WarnDays <= 0 || p.FlagDays <= 0 || p.MuteMinutes <= 0 || p.SuspensionDays <= 0 {
		return errors.New("durations must be positive")
	}

	if p.ScoreNormalizer <= 0 {
		return errors.New("score normalizer must be positive")
	}

	return nil
}
