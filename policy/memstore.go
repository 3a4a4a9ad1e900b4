package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"emperror.dev/errors"
)

// MemStore is the in memory Store, used by tests and embedders.
type MemStore struct {
	mu       sync.Mutex
	policies map[int64]*GuildPolicy

	clock func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		policies: make(map[int64]*GuildPolicy),
		clock:    time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *MemStore) WithClock(clock func() time.Time) *MemStore {
	s.clock = clock
	return s
}

func (s *MemStore) Get(ctx context.Context, guildID int64) (*GuildPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pol, ok := s.policies[guildID]
	if !ok {
		return DefaultPolicy(guildID), nil
	}

	cop := *pol
	return &cop, nil
}

func (s *MemStore) Save(ctx context.Context, pol *GuildPolicy) error {
	if err := pol.Validate(); err != nil {
		return errors.WrapIf(err, ErrInvalidPolicy.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	pol.UpdatedAt = now
	if pol.CreatedAt.IsZero() {
		pol.CreatedAt = now
	}

	cop := *pol
	s.policies[pol.GuildID] = &cop
	return nil
}

func (s *MemStore) ListGuilds(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]int64, 0, len(s.policies))
	for id := range s.policies {
		result = append(result, id)
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}
