// Package hierarchy resolves a member's permission level from their role
// membership and the guild policy. Resolution is a pure function, every
// sanctioning call goes through it so it has to stay cheap.
package hierarchy

import (
	"emperror.dev/errors"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/policy"
)

// Level is a member's place in the moderation hierarchy, higher outranks
// lower.
type Level int

const (
	LevelMember Level = iota
	LevelModerator
	LevelSeniorMod
	LevelHeadMod
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelMember:
		return "member"
	case LevelModerator:
		return "moderator"
	case LevelSeniorMod:
		return "senior_mod"
	case LevelHeadMod:
		return "head_mod"
	case LevelAdmin:
		return "admin"
	}

	return "unknown"
}

// ParseLevel is the inverse of String.
func ParseLevel(s string) (Level, error) {
	for l := LevelMember; l <= LevelAdmin; l++ {
		if l.String() == s {
			return l, nil
		}
	}

	return LevelMember, errors.Errorf("unknown level %q", s)
}

// IsStaff reports whether the level is moderator or above.
func (l Level) IsStaff() bool {
	return l >= LevelModerator
}

// Member is the snapshot of a guild member the resolver needs, assembled by
// the platform layer. HasAdminPerm is the platform's native administrator
// capability, IsOwner the guild owner identity.
type Member struct {
	UserID       int64
	RoleIDs      []int64
	IsOwner      bool
	HasAdminPerm bool
}

// ResolveLevel maps the member to a level. Evaluation order is fixed, admin
// first then down the tiers, first match wins.
func ResolveLevel(m Member, pol *policy.GuildPolicy) Level {
	if m.IsOwner || m.HasAdminPerm || common.ContainsInt64SliceOneOf(m.RoleIDs, pol.AdminRoles) {
		return LevelAdmin
	}

	if common.ContainsInt64SliceOneOf(m.RoleIDs, pol.HeadModRoles) {
		return LevelHeadMod
	}

	if common.ContainsInt64SliceOneOf(m.RoleIDs, pol.SeniorModRoles) {
		return LevelSeniorMod
	}

	if common.ContainsInt64SliceOneOf(m.RoleIDs, pol.ModRoles) {
		return LevelModerator
	}

	return LevelMember
}

// CanActOn is the staff immunity rule: staff can only be sanctioned by
// admins, everyone may sanction plain members.
func CanActOn(actor, target Level) bool {
	if target < LevelModerator {
		return true
	}

	return actor == LevelAdmin
}
