package sanctions

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/common/testutils"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	db, err := testutils.InitPQ([]string{"sanctions", "modlog"}, DBSchemas)
	if err != nil {
		fmt.Println("Failed connecting to postgres, skipping the postgres store tests: ", err)
	} else {
		testDB = db
	}

	os.Exit(m.Run())
}

func pgTestStore(t *testing.T) (*PGStore, *testClock) {
	if testDB == nil {
		t.Skip("postgres not available")
	}

	testutils.ClearTables(testDB, "sanctions", "modlog")

	node, err := snowflake.NewNode(0)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewPGStore(&common.Core{PQ: testDB, IDNode: node}).WithClock(clock.Now)
	return store, clock
}

func TestPGCreateAndGet(t *testing.T) {
	store, clock := pgTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, &Sanction{
		Kind: KindWarning, GuildID: 1, SubjectID: 2, IssuerID: 3, Reason: "spamming",
	}, time.Hour*24*14)
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Equal(t, "spamming", got.Reason)
	require.True(t, got.ExpiresAt.Valid)
	assert.True(t, got.ExpiresAt.Time.Equal(clock.Now().Add(time.Hour*24*14)))

	// no deadline for an open ended imprisonment
	id, err = store.Create(ctx, &Sanction{
		Kind: KindImprisonment, GuildID: 1, SubjectID: 5, IssuerID: 3, RemovedRoles: []int64{10, 11},
	}, 0)
	require.NoError(t, err)

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.ExpiresAt.Valid)
	assert.Equal(t, []int64{10, 11}, []int64(got.RemovedRoles))

	_, err = store.Get(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGValidation(t *testing.T) {
	store, _ := pgTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, &Sanction{Kind: KindMute, GuildID: 1, SubjectID: 2, IssuerID: 3}, 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestPGMuteRefresh(t *testing.T) {
	store, clock := pgTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, &Sanction{
		Kind: KindMute, GuildID: 1, SubjectID: 2, IssuerID: 3, Reason: "first", RemovedRoles: []int64{10},
	}, 10*time.Minute)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	second, err := store.Create(ctx, &Sanction{
		Kind: KindMute, GuildID: 1, SubjectID: 2, IssuerID: 4, Reason: "second", RemovedRoles: []int64{11},
	}, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	active, err := store.ListActive(ctx, 1, 2, KindMute)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "second", active[0].Reason)
	assert.Equal(t, int64(4), active[0].IssuerID)
	assert.True(t, active[0].ExpiresAt.Time.Equal(clock.Now().Add(20*time.Minute)))
	assert.Equal(t, []int64{10, 11}, []int64(active[0].RemovedRoles))

	// a different subject gets its own row
	third, err := store.Create(ctx, &Sanction{Kind: KindMute, GuildID: 1, SubjectID: 9, IssuerID: 3}, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestPGTempRolePerRole(t *testing.T) {
	store, _ := pgTestStore(t)
	ctx := context.Background()

	id1, err := store.Create(ctx, &Sanction{Kind: KindTempRole, GuildID: 1, SubjectID: 2, IssuerID: 3, RoleID: 10}, time.Hour)
	require.NoError(t, err)
	id2, err := store.Create(ctx, &Sanction{Kind: KindTempRole, GuildID: 1, SubjectID: 2, IssuerID: 3, RoleID: 11}, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	again, err := store.Create(ctx, &Sanction{Kind: KindTempRole, GuildID: 1, SubjectID: 2, IssuerID: 3, RoleID: 10}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, id1, again)

	count, err := store.ActiveCount(ctx, 1, 2, KindTempRole)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPGDeactivate(t *testing.T) {
	store, _ := pgTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, &Sanction{Kind: KindWarning, GuildID: 1, SubjectID: 2, IssuerID: 3}, time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Deactivate(ctx, id))
	require.NoError(t, store.Deactivate(ctx, id), "deactivate is idempotent")
	assert.ErrorIs(t, store.Deactivate(ctx, 424242), ErrNotFound)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestPGListExpired(t *testing.T) {
	store, clock := pgTestStore(t)
	ctx := context.Background()
	start := clock.Now()

	for _, dur := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		_, err := store.Create(ctx, &Sanction{Kind: KindWarning, GuildID: 1, SubjectID: 2, IssuerID: 3}, dur)
		require.NoError(t, err)
	}

	expired, err := store.ListExpired(ctx, KindWarning, start.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.True(t, expired[0].ExpiresAt.Time.Equal(start.Add(time.Hour)))
	assert.True(t, expired[1].ExpiresAt.Time.Equal(start.Add(2*time.Hour)))

	expired, err = store.ListExpired(ctx, KindWarning, start.Add(2*time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.True(t, expired[0].ExpiresAt.Time.Equal(start.Add(time.Hour)))
}

func TestPGDeactivateAllFlags(t *testing.T) {
	store, _ := pgTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, &Sanction{Kind: KindStaffFlag, GuildID: 1, SubjectID: 2, IssuerID: 3}, time.Hour)
		require.NoError(t, err)
	}

	cleared, err := store.DeactivateAllFlags(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, cleared)

	count, err := store.ActiveCount(ctx, 1, 2, KindStaffFlag)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPGModlogAndRanks(t *testing.T) {
	store, clock := pgTestStore(t)
	ctx := context.Background()
	start := clock.Now()

	require.NoError(t, store.AppendLog(ctx, &ModlogEntry{GuildID: 1, Action: ActionWarning, SubjectID: 2, IssuerID: 3}))
	clock.Advance(time.Hour * 24 * 10)
	require.NoError(t, store.AppendLog(ctx, &ModlogEntry{GuildID: 1, Action: ActionBan, SubjectID: 2, IssuerID: 3}))

	entries, err := store.ListLog(ctx, 1, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionBan, entries[0].Action)

	count, err := store.CountLogActions(ctx, 1, 3, []string{ActionWarning, ActionBan}, start.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountLogActions(ctx, 1, 3, []string{ActionWarning, ActionBan}, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// rank query, two tied leaders
	for subject, n := range map[int64]int{100: 2, 200: 2, 300: 1} {
		for i := 0; i < n; i++ {
			_, err := store.Create(ctx, &Sanction{Kind: KindWarning, GuildID: 7, SubjectID: subject, IssuerID: 3}, time.Hour)
			require.NoError(t, err)
		}
	}

	top, err := store.TopWarned(ctx, 7, 0, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 1, top[1].Rank)
	assert.Equal(t, 3, top[2].Rank)
	assert.Equal(t, int64(300), top[2].SubjectID)
}
