package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vielumine/vertigo/policy"
)

func testPolicy() *policy.GuildPolicy {
	pol := policy.DefaultPolicy(1)
	pol.AdminRoles = []int64{40}
	pol.HeadModRoles = []int64{30}
	pol.SeniorModRoles = []int64{20}
	pol.ModRoles = []int64{10, 11}
	return pol
}

func TestResolveLevel(t *testing.T) {
	pol := testPolicy()

	cases := []struct {
		name   string
		member Member
		want   Level
	}{
		{"no roles", Member{RoleIDs: []int64{99}}, LevelMember},
		{"mod role", Member{RoleIDs: []int64{10}}, LevelModerator},
		{"generic staff role", Member{RoleIDs: []int64{11}}, LevelModerator},
		{"senior mod role", Member{RoleIDs: []int64{20}}, LevelSeniorMod},
		{"head mod role", Member{RoleIDs: []int64{30}}, LevelHeadMod},
		{"admin role", Member{RoleIDs: []int64{40}}, LevelAdmin},
		{"owner without roles", Member{IsOwner: true}, LevelAdmin},
		{"native admin perm", Member{HasAdminPerm: true, RoleIDs: []int64{10}}, LevelAdmin},
		{"highest tier wins", Member{RoleIDs: []int64{10, 20, 30}}, LevelHeadMod},
		{"admin beats everything", Member{RoleIDs: []int64{10, 40}}, LevelAdmin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveLevel(tc.member, pol))
		})
	}
}

func TestResolveLevelPure(t *testing.T) {
	pol := testPolicy()
	m := Member{RoleIDs: []int64{20, 10}}

	first := ResolveLevel(m, pol)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ResolveLevel(m, pol))
	}
}

func TestCanActOn(t *testing.T) {
	// anyone can act on plain members
	assert.True(t, CanActOn(LevelModerator, LevelMember))
	assert.True(t, CanActOn(LevelMember, LevelMember))

	// staff is immune to non admins
	assert.False(t, CanActOn(LevelModerator, LevelModerator))
	assert.False(t, CanActOn(LevelHeadMod, LevelSeniorMod))
	assert.False(t, CanActOn(LevelHeadMod, LevelAdmin))

	// admins can act on anyone
	assert.True(t, CanActOn(LevelAdmin, LevelModerator))
	assert.True(t, CanActOn(LevelAdmin, LevelHeadMod))
	assert.True(t, CanActOn(LevelAdmin, LevelAdmin))
}

func TestLevelStrings(t *testing.T) {
	for l := LevelMember; l <= LevelAdmin; l++ {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}

	assert.Equal(t, "unknown", Level(99).String())

	_, err := ParseLevel("grand_vizier")
	assert.Error(t, err)
}

func TestIsStaff(t *testing.T) {
	assert.False(t, LevelMember.IsStaff())
	assert.True(t, LevelModerator.IsStaff())
	assert.True(t, LevelAdmin.IsStaff())
}
