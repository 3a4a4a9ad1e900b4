package policy

import (
	"context"
	"os"

	"emperror.dev/errors"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"
)

// seedFile is the yaml layout consumed by the -seedpolicy flag. Zero fields
// fall back to the defaults.
type seedFile struct {
	Policies []seedPolicy `yaml:"policies"`
}

type seedPolicy struct {
	GuildID int64 `yaml:"guild_id"`

	AdminRoles     []int64 `yaml:"admin_roles"`
	HeadModRoles   []int64 `yaml:"head_mod_roles"`
	SeniorModRoles []int64 `yaml:"senior_mod_roles"`
	ModRoles       []int64 `yaml:"mod_roles"`

	WarnDays       int64 `yaml:"warn_days"`
	FlagDays       int64 `yaml:"flag_days"`
	MuteMinutes    int64 `yaml:"mute_minutes"`
	SuspensionDays int64 `yaml:"suspension_days"`
	MaxFlags       int   `yaml:"max_flags"`

	QuotaModerator int `yaml:"quota_moderator"`
	QuotaSeniorMod int `yaml:"quota_senior_mod"`
	QuotaHeadMod   int `yaml:"quota_head_mod"`
}

func (sp *seedPolicy) apply() *GuildPolicy {
	pol := DefaultPolicy(sp.GuildID)

	pol.AdminRoles = pq.Int64Array(sp.AdminRoles)
	pol.HeadModRoles = pq.Int64Array(sp.HeadModRoles)
	pol.SeniorModRoles = pq.Int64Array(sp.SeniorModRoles)
	pol.ModRoles = pq.Int64Array(sp.ModRoles)

	if sp.WarnDays > 0 {
		pol.WarnDays = sp.WarnDays
	}
	if sp.FlagDays > 0 {
		pol.FlagDays = sp.FlagDays
	}
	if sp.MuteMinutes > 0 {
		pol.MuteMinutes = sp.MuteMinutes
	}
	if sp.SuspensionDays > 0 {
		pol.SuspensionDays = sp.SuspensionDays
	}
	if sp.MaxFlags > 0 {
		pol.MaxFlags = sp.MaxFlags
	}
	if sp.QuotaModerator > 0 {
		pol.QuotaModerator = sp.QuotaModerator
	}
	if sp.QuotaSeniorMod > 0 {
		pol.QuotaSeniorMod = sp.QuotaSeniorMod
	}
	if sp.QuotaHeadMod > 0 {
		pol.QuotaHeadMod = sp.QuotaHeadMod
	}

	return pol
}

// ParseSeed parses a yaml policy seed document.
func ParseSeed(raw []byte) ([]*GuildPolicy, error) {
	var parsed seedFile
	err := yaml.Unmarshal(raw, &parsed)
	if err != nil {
		return nil, errors.WrapIf(err, "malformed policy seed")
	}

	result := make([]*GuildPolicy, 0, len(parsed.Policies))
	for _, sp := range parsed.Policies {
		if sp.GuildID == 0 {
			return nil, errors.New("policy seed entry missing guild_id")
		}

		result = append(result, sp.apply())
	}

	return result, nil
}

// SeedFromFile loads the yaml file and saves every policy in it, returning
// how many were saved. Used by the ops seeding command, not at runtime.
func SeedFromFile(ctx context.Context, store Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.WrapIf(err, "reading policy seed")
	}

	policies, err := ParseSeed(raw)
	if err != nil {
		return 0, err
	}

	for i, pol := range policies {
		if err := store.Save(ctx, pol); err != nil {
			return i, err
		}
	}

	return len(policies), nil
}
