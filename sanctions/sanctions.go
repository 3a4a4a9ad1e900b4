// Package sanctions holds the durable records behind every moderation
// decision: the sanction rows themselves and the append only modlog that
// forms the audit trail. Records are never deleted, only deactivated.
package sanctions

import (
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/vielumine/vertigo/common"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Sanctions",
		SysName:  "sanctions",
		Category: common.PluginCategoryModeration,
	}
}

// RegisterPlugin registers the plugin and brings the schema up to date.
func RegisterPlugin(core *common.Core) {
	core.RegisterPlugin(&Plugin{})
	core.InitSchemas("sanctions", DBSchemas...)
}

// ErrNotFound is returned when looking up a sanction that does not exist.
var ErrNotFound = errors.Sentinel("sanction not found")

// Kind is the type of a sanction. The numeric values are persisted, do not
// reorder.
type Kind int

const (
	KindWarning Kind = iota
	KindMute
	KindTempRole
	KindPersistentRole
	KindStaffFlag
	KindImprisonment
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "warning"
	case KindMute:
		return "mute"
	case KindTempRole:
		return "temp_role"
	case KindPersistentRole:
		return "persistent_role"
	case KindStaffFlag:
		return "staff_flag"
	case KindImprisonment:
		return "imprisonment"
	}

	return "unknown"
}

// RequiresDuration reports whether a sanction of this kind has to carry a
// positive duration when created.
func (k Kind) RequiresDuration() bool {
	switch k {
	case KindWarning, KindMute, KindTempRole, KindStaffFlag:
		return true
	}

	return false
}

// RequiresRole reports whether the kind carries a role payload.
func (k Kind) RequiresRole() bool {
	return k == KindTempRole || k == KindPersistentRole
}

// SingletonPerRole reports whether at most one active sanction of this kind
// may exist per (guild, subject, role). Creating another refreshes the
// existing one.
func (k Kind) SingletonPerRole() bool {
	return k == KindTempRole || k == KindPersistentRole
}

// SingletonPerSubject reports whether at most one active sanction of this
// kind may exist per (guild, subject). Creating another refreshes the
// existing one.
func (k Kind) SingletonPerSubject() bool {
	return k == KindMute || k == KindImprisonment
}

func (k Kind) Validate() error {
	if k < KindWarning || k > KindImprisonment {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %d", k)}
	}

	return nil
}

// Sanction is a single moderation decision against a subject. ExpiresAt is
// null for sanctions that do not expire on their own.
type Sanction struct {
	ID        int64     `db:"id"`
	GuildID   int64     `db:"guild_id"`
	Kind      Kind      `db:"kind"`
	SubjectID int64     `db:"subject_id"`
	IssuerID  int64     `db:"issuer_id"`
	Reason    string    `db:"reason"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt null.Time `db:"expires_at"`
	Active    bool      `db:"active"`

	// role payload for TempRole/PersistentRole
	RoleID int64 `db:"role_id"`
	// snapshot of roles stripped when the sanction was applied, restored on
	// expiry or reversal
	RemovedRoles pq.Int64Array `db:"removed_roles"`
}

// Expired reports whether the sanction has a deadline that passed.
func (s *Sanction) Expired(now time.Time) bool {
	return s.ExpiresAt.Valid && !s.ExpiresAt.Time.After(now)
}

// ValidationError means the input was malformed, nothing was persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (v *ValidationError) Error() string {
	return "invalid " + v.Field + ": " + v.Message
}

// IsValidationError is a convenience for callers deciding whether an error
// should be relayed back to the user.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func validateNew(s *Sanction, duration time.Duration) error {
	if err := s.Kind.Validate(); err != nil {
		return err
	}

	if s.GuildID == 0 {
		return &ValidationError{Field: "guild_id", Message: "missing"}
	}

	if s.SubjectID == 0 {
		return &ValidationError{Field: "subject_id", Message: "missing"}
	}

	if s.IssuerID == 0 {
		return &ValidationError{Field: "issuer_id", Message: "missing"}
	}

	if s.Kind.RequiresDuration() && duration <= 0 {
		return &ValidationError{Field: "duration", Message: "required for " + s.Kind.String()}
	}

	if duration < 0 {
		return &ValidationError{Field: "duration", Message: "negative"}
	}

	if s.Kind.RequiresRole() && s.RoleID == 0 {
		return &ValidationError{Field: "role_id", Message: "required for " + s.Kind.String()}
	}

	return nil
}

// stamp fills in the fields the store owns before insert.
func stamp(s *Sanction, id int64, now time.Time, duration time.Duration) {
	s.ID = id
	s.CreatedAt = now
	s.Active = true
	stampExpiry(s, now, duration)
}

// stampExpiry sets the deadline duration away from now, a refresh of an
// existing sanction restarts its clock.
func stampExpiry(s *Sanction, now time.Time, duration time.Duration) {
	if duration > 0 {
		s.ExpiresAt = null.TimeFrom(now.Add(duration))
	} else {
		s.ExpiresAt = null.Time{}
	}
}
