package performance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vielumine/vertigo/hierarchy"
)

func pendingSuggestion() *Suggestion {
	return &Suggestion{
		GuildID:        1,
		UserID:         2,
		Type:           TypePromotion,
		CurrentLevel:   hierarchy.LevelModerator,
		SuggestedLevel: hierarchy.LevelSeniorMod,
		Confidence:     0.8,
		Reason:         "active",
	}
}

func TestSuggestionInsertGuardsConfidence(t *testing.T) {
	store := NewMemSuggestionStore()
	ctx := context.Background()

	s := pendingSuggestion()
	s.Confidence = 0.49
	_, err := store.Insert(ctx, s)
	assert.ErrorIs(t, err, ErrLowConfidence)

	s.Confidence = 1.5
	_, err = store.Insert(ctx, s)
	assert.Error(t, err)

	s.Confidence = 0.5
	_, err = store.Insert(ctx, s)
	assert.NoError(t, err, "the floor itself is persistable")
}

func TestSuggestionLifecycle(t *testing.T) {
	store := NewMemSuggestionStore()
	ctx := context.Background()

	id, err := store.Insert(ctx, pendingSuggestion())
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.False(t, got.ReviewedBy.Valid)

	pending, err := store.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	exists, err := store.PendingExists(ctx, 1, 2, TypePromotion)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.PendingExists(ctx, 1, 2, TypeDemotionWarning)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.SetStatus(ctx, id, 99, StatusApproved))

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, int64(99), got.ReviewedBy.Int64)
	assert.True(t, got.ReviewedAt.Valid)

	pending, err = store.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSuggestionRepeatedReviewNoOp(t *testing.T) {
	store := NewMemSuggestionStore()
	ctx := context.Background()

	id, err := store.Insert(ctx, pendingSuggestion())
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(ctx, id, 99, StatusDenied))

	// a second review, even a contradicting one, changes nothing
	require.NoError(t, store.SetStatus(ctx, id, 50, StatusApproved))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDenied, got.Status)
	assert.Equal(t, int64(99), got.ReviewedBy.Int64)
}

func TestSuggestionNotFound(t *testing.T) {
	store := NewMemSuggestionStore()
	ctx := context.Background()

	_, err := store.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrSuggestionNotFound)

	err = store.SetStatus(ctx, 12345, 1, StatusApproved)
	assert.ErrorIs(t, err, ErrSuggestionNotFound)
}
