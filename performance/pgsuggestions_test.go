package performance

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
	"github.com/vielumine/vertigo/hierarchy"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	db, err := testutils.InitPQ([]string{"promotion_suggestions"}, SuggestionDBSchemas)
	if err != nil {
		fmt.Println("Failed connecting to postgres, skipping the postgres store tests: ", err)
	} else {
		testDB = db
	}

	os.Exit(m.Run())
}

func pgTestStore(t *testing.T) *PGSuggestionStore {
	if testDB == nil {
		t.Skip("postgres not available")
	}

	testutils.ClearTables(testDB, "promotion_suggestions")

	node, err := snowflake.NewNode(0)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewPGSuggestionStore(&common.Core{PQ: testDB, IDNode: node}).WithClock(clock.Now)
}

func TestPGSuggestionLifecycle(t *testing.T) {
	store := pgTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, pendingSuggestion())
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, TypePromotion, got.Type)
	assert.Equal(t, hierarchy.LevelSeniorMod, got.SuggestedLevel)

	exists, err := store.PendingExists(ctx, 1, 2, TypePromotion)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.SetStatus(ctx, id, 99, StatusApproved))

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, int64(99), got.ReviewedBy.Int64)

	// repeated review stays a no-op
	require.NoError(t, store.SetStatus(ctx, id, 50, StatusDenied))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	pending, err := store.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPGSuggestionGuards(t *testing.T) {
	store := pgTestStore(t)
	ctx := context.Background()

	s := pendingSuggestion()
	s.Confidence = 0.2
	_, err := store.Insert(ctx, s)
	assert.ErrorIs(t, err, ErrLowConfidence)

	_, err = store.Get(ctx, 404)
	assert.ErrorIs(t, err, ErrSuggestionNotFound)

	err = store.SetStatus(ctx, 404, 1, StatusApproved)
	assert.ErrorIs(t, err, ErrSuggestionNotFound)
}
