package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	pol := DefaultPolicy(123)

	require.NoError(t, pol.Validate())
	assert.Equal(t, int64(123), pol.GuildID)
	assert.Equal(t, 5, pol.MaxFlags)
	assert.Equal(t, 14*24*time.Hour, pol.WarnDuration())
	assert.Equal(t, 30*24*time.Hour, pol.FlagDuration())
	assert.Equal(t, 10*time.Minute, pol.MuteDuration())
	assert.Equal(t, 7*24*time.Hour, pol.SuspensionDuration())
}

func TestPolicyValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*GuildPolicy)
	}{
		{"missing guild", func(p *GuildPolicy) { p.GuildID = 0 }},
		{"zero max flags", func(p *GuildPolicy) { p.MaxFlags = 0 }},
		{"zero warn days", func(p *GuildPolicy) { p.WarnDays = 0 }},
		{"negative suspension", func(p *GuildPolicy) { p.SuspensionDays = -1 }},
		{"zero normalizer", func(p *GuildPolicy) { p.ScoreNormalizer = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pol := DefaultPolicy(1)
			tc.mutate(pol)
			assert.Error(t, pol.Validate())
		})
	}
}

func TestStaffTierRoles(t *testing.T) {
	pol := DefaultPolicy(1)
	pol.ModRoles = []int64{10, 11}
	pol.SeniorModRoles = []int64{11, 12}
	pol.HeadModRoles = []int64{13}
	pol.AdminRoles = []int64{14}

	assert.Equal(t, []int64{10, 11, 12, 13, 14}, pol.StaffTierRoles())
}

func TestMemStoreGetDefaults(t *testing.T) {
	store := NewMemStore()

	pol, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(42), pol)
}

func TestMemStoreSaveGet(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	pol := DefaultPolicy(42)
	pol.MaxFlags = 3
	pol.ModRoles = []int64{99}
	require.NoError(t, store.Save(ctx, pol))

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxFlags)
	assert.Equal(t, []int64{99}, []int64(got.ModRoles))
	assert.False(t, got.UpdatedAt.IsZero())

	// mutating the returned copy does not touch the stored one
	got.MaxFlags = 1
	again, err := store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, again.MaxFlags)
}

func TestMemStoreSaveInvalid(t *testing.T) {
	store := NewMemStore()

	pol := DefaultPolicy(42)
	pol.MaxFlags = 0
	assert.Error(t, store.Save(context.Background(), pol))
}

func TestMemStoreListGuilds(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, DefaultPolicy(3)))
	require.NoError(t, store.Save(ctx, DefaultPolicy(1)))
	require.NoError(t, store.Save(ctx, DefaultPolicy(2)))

	ids, err := store.ListGuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestCachedStore(t *testing.T) {
	inner := NewMemStore()
	cached := NewCachedStore(inner, nil)
	ctx := context.Background()

	pol := DefaultPolicy(42)
	pol.MaxFlags = 3
	require.NoError(t, inner.Save(ctx, pol))

	got, err := cached.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxFlags)

	// a save bypassing the cache is invisible until invalidation
	pol.MaxFlags = 2
	require.NoError(t, inner.Save(ctx, pol))

	got, err = cached.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxFlags)

	cached.InvalidateCache(42)

	got, err = cached.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxFlags)
}

func TestCachedStoreSaveInvalidates(t *testing.T) {
	inner := NewMemStore()
	cached := NewCachedStore(inner, nil)
	ctx := context.Background()

	got, err := cached.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 5, got.MaxFlags)

	pol := DefaultPolicy(42)
	pol.MaxFlags = 2
	require.NoError(t, cached.Save(ctx, pol))

	got, err = cached.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxFlags)
}

func TestParseSeed(t *testing.T) {
	const doc = `
policies:
  - guild_id: 42
    mod_roles: [10, 11]
    head_mod_roles: [12]
    max_flags: 3
    warn_days: 7
  - guild_id: 43
`

	policies, err := ParseSeed([]byte(doc))
	require.NoError(t, err)
	require.Len(t, policies, 2)

	assert.Equal(t, int64(42), policies[0].GuildID)
	assert.Equal(t, []int64{10, 11}, []int64(policies[0].ModRoles))
	assert.Equal(t, 3, policies[0].MaxFlags)
	assert.Equal(t, int64(7), policies[0].WarnDays)
	// unset fields fall back to the defaults
	assert.Equal(t, int64(DefaultFlagDays), policies[0].FlagDays)

	assert.Equal(t, DefaultPolicy(43), policies[1])
}

func TestParseSeedErrors(t *testing.T) {
	_, err := ParseSeed([]byte("policies: [{mod_roles: [1]}]"))
	assert.Error(t, err, "missing guild_id")

	_, err = ParseSeed([]byte("not yaml: ["))
	assert.Error(t, err)
}
