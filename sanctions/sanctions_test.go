package sanctions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestKindNames(t *testing.T) {
	cases := map[Kind]string{
		KindWarning:        "warning",
		KindMute:           "mute",
		KindTempRole:       "temp_role",
		KindPersistentRole: "persistent_role",
		KindStaffFlag:      "staff_flag",
		KindImprisonment:   "imprisonment",
		Kind(42):           "unknown",
	}

	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}

	assert.Equal(t, "mute_expired", ActionExpired(KindMute))
	assert.Equal(t, "staff_flag_reversed", ActionReversed(KindStaffFlag))
	assert.Equal(t, "warning", ActionIssued(KindWarning))
}

func TestKindConstraints(t *testing.T) {
	assert.True(t, KindWarning.RequiresDuration())
	assert.True(t, KindStaffFlag.RequiresDuration())
	assert.False(t, KindPersistentRole.RequiresDuration())
	assert.False(t, KindImprisonment.RequiresDuration())

	assert.True(t, KindTempRole.RequiresRole())
	assert.True(t, KindPersistentRole.RequiresRole())
	assert.False(t, KindMute.RequiresRole())

	assert.True(t, KindMute.SingletonPerSubject())
	assert.True(t, KindImprisonment.SingletonPerSubject())
	assert.False(t, KindWarning.SingletonPerSubject())

	assert.True(t, KindTempRole.SingletonPerRole())
	assert.False(t, KindStaffFlag.SingletonPerRole())
}

func TestSanctionExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	open := &Sanction{}
	assert.False(t, open.Expired(now), "no deadline never expires")

	past := &Sanction{ExpiresAt: null.TimeFrom(now.Add(-time.Second))}
	assert.True(t, past.Expired(now))

	exact := &Sanction{ExpiresAt: null.TimeFrom(now)}
	assert.True(t, exact.Expired(now), "deadline is inclusive")

	future := &Sanction{ExpiresAt: null.TimeFrom(now.Add(time.Second))}
	assert.False(t, future.Expired(now))
}

func TestActionPresentation(t *testing.T) {
	assert.Equal(t, MAWarned, ActionPresentation(ActionWarning))
	assert.Equal(t, MAUnmute, ActionPresentation("mute_expired"))
	assert.Equal(t, MATerminated, ActionPresentation(ActionTerminate))
	assert.Equal(t, "something_else", ActionPresentation("something_else").Prefix)
}
