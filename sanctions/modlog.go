package sanctions

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Modlog action names as persisted. Expiry and reversal entries derive from
// the kind name, keep them in sync with Kind.String.
const (
	ActionWarning        = "warning"
	ActionMute           = "mute"
	ActionTempRole       = "temp_role"
	ActionPersistentRole = "persistent_role"
	ActionStaffFlag      = "staff_flag"
	ActionImprisonment   = "imprisonment"
	ActionKick           = "kick"
	ActionBan            = "ban"
	ActionClearWarnings  = "warnings_cleared"
	ActionTerminate      = "terminate"
)

// ActionIssued returns the modlog action name for issuing a sanction of the
// given kind.
func ActionIssued(kind Kind) string {
	return kind.String()
}

// ActionExpired returns the modlog action name written when the reconciler
// deactivates an expired sanction.
func ActionExpired(kind Kind) string {
	return kind.String() + "_expired"
}

// ActionReversed returns the modlog action name written on explicit reversal.
func ActionReversed(kind Kind) string {
	return kind.String() + "_reversed"
}

// ModlogEntry is one row of the append only audit trail. LinkedSanctionID
// ties the entry to the sanction it records, LinkedMessageID optionally ties
// it to the message posted about it by the platform layer.
type ModlogEntry struct {
	ID               int64      `db:"id"`
	GuildID          int64      `db:"guild_id"`
	Action           string     `db:"action"`
	SubjectID        int64      `db:"subject_id"`
	IssuerID         int64      `db:"issuer_id"`
	Reason           string     `db:"reason"`
	LinkedSanctionID null.Int64 `db:"linked_sanction_id"`
	LinkedMessageID  null.Int64 `db:"linked_message_id"`
	CreatedAt        time.Time  `db:"created_at"`
}

// ModlogAction is the presentation of an action, used when rendering
// notifications, never persisted.
type ModlogAction struct {
	Prefix string
	Emoji  string
	Color  int

	Footer string
}

func (m ModlogAction) String() string {
	str := m.Emoji + m.Prefix
	if m.Footer != "" {
		str += " (" + m.Footer + ")"
	}

	return str
}

var (
	MAWarned         = ModlogAction{Prefix: "Warned", Emoji: "⚠", Color: 0xfca253}
	MAMute           = ModlogAction{Prefix: "Muted", Emoji: "🔇", Color: 0x57728e}
	MAUnmute         = ModlogAction{Prefix: "Unmuted", Emoji: "🔊", Color: 0x62c65f}
	MAGiveRole       = ModlogAction{Prefix: "Role given to", Emoji: "➕", Color: 0x53fcf9}
	MARemoveRole     = ModlogAction{Prefix: "Role taken from", Emoji: "➖", Color: 0x53fcf9}
	MAFlagged        = ModlogAction{Prefix: "Flagged", Emoji: "🚩", Color: 0xd64848}
	MAUnflagged      = ModlogAction{Prefix: "Flag cleared from", Emoji: "🏳", Color: 0x62c65f}
	MAImprisoned     = ModlogAction{Prefix: "Imprisoned", Emoji: "⛓", Color: 0x4a4a4a}
	MAReleased       = ModlogAction{Prefix: "Released", Emoji: "🔓", Color: 0x62c65f}
	MAClearWarnings  = ModlogAction{Prefix: "Cleared warnings of", Emoji: "👌", Color: 0x62c65f}
	MATerminated     = ModlogAction{Prefix: "Terminated", Emoji: "🔨", Color: 0xd64848}
)

// ActionPresentation maps a persisted action name to its presentation,
// falling back to a plain prefix for unknown names.
func ActionPresentation(action string) ModlogAction {
	switch action {
	case ActionWarning:
		return MAWarned
	case ActionMute:
		return MAMute
	case "mute_expired", "mute_reversed":
		return MAUnmute
	case ActionTempRole, ActionPersistentRole:
		return MAGiveRole
	case "temp_role_expired", "temp_role_reversed", "persistent_role_reversed":
		return MARemoveRole
	case ActionStaffFlag:
		return MAFlagged
	case "staff_flag_expired", "staff_flag_reversed":
		return MAUnflagged
	case ActionImprisonment:
		return MAImprisoned
	case "imprisonment_expired", "imprisonment_reversed":
		return MAReleased
	case ActionClearWarnings:
		return MAClearWarnings
	case ActionTerminate:
		return MATerminated
	}

	return ModlogAction{Prefix: action}
}
