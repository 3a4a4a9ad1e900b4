package performance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"
)

// MemSuggestionStore is the in memory SuggestionStore, used by tests and
// embedders.
type MemSuggestionStore struct {
	mu          sync.Mutex
	suggestions map[int64]*Suggestion

	clock func() time.Time
	c     int64
}

var _ SuggestionStore = (*MemSuggestionStore)(nil)

func NewMemSuggestionStore() *MemSuggestionStore {
	return &MemSuggestionStore{
		suggestions: make(map[int64]*Suggestion),
		clock:       time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *MemSuggestionStore) WithClock(clock func() time.Time) *MemSuggestionStore {
	s.clock = clock
	return s
}

func (s *MemSuggestionStore) Insert(ctx context.Context, suggestion *Suggestion) (int64, error) {
	if err := suggestion.validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.c++
	suggestion.ID = s.c
	suggestion.Status = StatusPending
	suggestion.CreatedAt = s.clock()

	cop := *suggestion
	s.suggestions[cop.ID] = &cop
	return cop.ID, nil
}

func (s *MemSuggestionStore) Get(ctx context.Context, id int64) (*Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suggestion, ok := s.suggestions[id]
	if !ok {
		return nil, ErrSuggestionNotFound
	}

	cop := *suggestion
	return &cop, nil
}

func (s *MemSuggestionStore) ListPending(ctx context.Context, guildID int64) ([]*Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Suggestion, 0)
	for _, suggestion := range s.suggestions {
		if suggestion.GuildID == guildID && suggestion.Status == StatusPending {
			cop := *suggestion
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemSuggestionStore) PendingExists(ctx context.Context, guildID, userID int64, typ SuggestionType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, suggestion := range s.suggestions {
		if suggestion.GuildID == guildID && suggestion.UserID == userID &&
			suggestion.Type == typ && suggestion.Status == StatusPending {
			return true, nil
		}
	}

	return false, nil
}

func (s *MemSuggestionStore) SetStatus(ctx context.Context, id, reviewerID int64, status SuggestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	suggestion, ok := s.suggestions[id]
	if !ok {
		return ErrSuggestionNotFound
	}

	if suggestion.Status != StatusPending {
		// already resolved, repeated reviews are no-ops
		return nil
	}

	suggestion.Status = status
	suggestion.ReviewedBy = null.Int64From(reviewerID)
	suggestion.ReviewedAt = null.TimeFrom(s.clock())
	return nil
}
