// Package platform declares the outbound capabilities this module needs
// from the host chat platform: applying role and timeout effects, sending
// notifications and listing staff. The real implementations live in the
// platform facing layer, this package only ships interfaces and a logging
// stand-in.
package platform

import (
	"context"
	"time"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/hierarchy"
)

type EffectKind string

const (
	EffectMute            EffectKind = "mute"
	EffectUnmute          EffectKind = "unmute"
	EffectGrantRole       EffectKind = "grant_role"
	EffectRemoveRole      EffectKind = "remove_role"
	EffectImprison        EffectKind = "imprison"
	EffectRelease         EffectKind = "release"
	EffectStripStaffRoles EffectKind = "strip_staff_roles"
)

// EffectRequest describes one external mutation. RoleID carries the single
// role for grant/remove, RoleIDs the set for strip/restore operations.
type EffectRequest struct {
	Kind    EffectKind
	GuildID int64
	UserID  int64

	RoleID   int64
	RoleIDs  []int64
	Reason   string
	Duration time.Duration
}

// Effector applies external effects. Implementations have to be idempotent
// in the ensure-present/ensure-absent sense, the reconciler retries effects
// that failed on an earlier tick.
type Effector interface {
	ApplyEffect(ctx context.Context, req *EffectRequest) error
}

// Notifier delivers a message to a user or channel, best effort.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, message string) error
}

// StaffMember is a hierarchy member with the join date attached, the scoring
// engine derives tenure from it.
type StaffMember struct {
	hierarchy.Member
	JoinedAt time.Time
}

// Directory lists the members the scoring engine should look at, everyone
// holding any staff tier role.
type Directory interface {
	ListStaffMembers(ctx context.Context, guildID int64) ([]*StaffMember, error)
}

var logger = common.GetFixedPrefixLogger("platform")

// LogPlatform implements every capability by logging the call and doing
// nothing. Used by dry runs and as the default until the platform layer is
// wired in.
type LogPlatform struct{}

var (
	_ Effector  = (*LogPlatform)(nil)
	_ Notifier  = (*LogPlatform)(nil)
	_ Directory = (*LogPlatform)(nil)
)

func (p *LogPlatform) ApplyEffect(ctx context.Context, req *EffectRequest) error {
	logger.WithField("guild", req.GuildID).WithField("user", req.UserID).
		Info("dry run effect: ", req.Kind)
	return nil
}

func (p *LogPlatform) Notify(ctx context.Context, recipientID int64, message string) error {
	logger.WithField("recipient", recipientID).Info("dry run notify: ", message)
	return nil
}

func (p *LogPlatform) ListStaffMembers(ctx context.Context, guildID int64) ([]*StaffMember, error) {
	logger.WithField("guild", guildID).Info("dry run staff listing")
	return nil, nil
}
