package sanctions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vielumine/vertigo/common"
)

// MemStore is the in memory Store, used by tests and by embedders that do
// not want a database. Semantics mirror PGStore exactly.
type MemStore struct {
	mu        sync.Mutex
	sanctions map[int64]*Sanction
	log       []*ModlogEntry

	clock func() time.Time
	c     int64
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		sanctions: make(map[int64]*Sanction),
		clock:     time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *MemStore) WithClock(clock func() time.Time) *MemStore {
	s.clock = clock
	return s
}

func (s *MemStore) nextID() int64 {
	s.c++
	return s.c
}

func (s *MemStore) Create(ctx context.Context, sanction *Sanction, duration time.Duration) (int64, error) {
	if err := validateNew(sanction, duration); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sanction.Kind.SingletonPerSubject() || sanction.Kind.SingletonPerRole() {
		for _, existing := range s.sanctions {
			if !existing.Active || existing.GuildID != sanction.GuildID ||
				existing.SubjectID != sanction.SubjectID || existing.Kind != sanction.Kind {
				continue
			}

			if sanction.Kind.SingletonPerRole() && existing.RoleID != sanction.RoleID {
				continue
			}

			// refresh instead of duplicating
			existing.IssuerID = sanction.IssuerID
			existing.Reason = sanction.Reason
			stampExpiry(existing, s.clock(), duration)
			existing.RemovedRoles = common.MergeInt64Slices(existing.RemovedRoles, sanction.RemovedRoles)

			*sanction = *existing
			return existing.ID, nil
		}
	}

	stamp(sanction, s.nextID(), s.clock(), duration)

	stored := *sanction
	s.sanctions[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemStore) Get(ctx context.Context, id int64) (*Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanction, ok := s.sanctions[id]
	if !ok {
		return nil, ErrNotFound
	}

	cop := *sanction
	return &cop, nil
}

func (s *MemStore) Deactivate(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sanction, ok := s.sanctions[id]
	if !ok {
		return ErrNotFound
	}

	sanction.Active = false
	return nil
}

func (s *MemStore) DeactivateAllFlags(ctx context.Context, guildID, subjectID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared := 0
	for _, sanction := range s.sanctions {
		if sanction.Active && sanction.GuildID == guildID && sanction.SubjectID == subjectID && sanction.Kind == KindStaffFlag {
			sanction.Active = false
			cleared++
		}
	}

	return cleared, nil
}

func (s *MemStore) ListActive(ctx context.Context, guildID, subjectID int64, kind Kind) ([]*Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Sanction, 0)
	for _, sanction := range s.sanctions {
		if sanction.Active && sanction.GuildID == guildID && sanction.SubjectID == subjectID && sanction.Kind == kind {
			cop := *sanction
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *MemStore) ListBySubject(ctx context.Context, guildID, subjectID int64, includeInactive bool, limit int) ([]*Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Sanction, 0)
	for _, sanction := range s.sanctions {
		if sanction.GuildID != guildID || sanction.SubjectID != subjectID {
			continue
		}
		if !includeInactive && !sanction.Active {
			continue
		}

		cop := *sanction
		result = append(result, &cop)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (s *MemStore) ListExpired(ctx context.Context, kind Kind, now time.Time, limit int) ([]*Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Sanction, 0)
	for _, sanction := range s.sanctions {
		if sanction.Active && sanction.Kind == kind && sanction.Expired(now) {
			cop := *sanction
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Time.Before(result[j].ExpiresAt.Time)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (s *MemStore) ActiveCount(ctx context.Context, guildID, subjectID int64, kind Kind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sanction := range s.sanctions {
		if sanction.Active && sanction.GuildID == guildID && sanction.SubjectID == subjectID && sanction.Kind == kind {
			count++
		}
	}

	return count, nil
}

func (s *MemStore) AppendLog(ctx context.Context, entry *ModlogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID()
	entry.CreatedAt = s.clock()

	cop := *entry
	s.log = append(s.log, &cop)
	return nil
}

func (s *MemStore) ListLog(ctx context.Context, guildID int64, limit int, before int64) ([]*ModlogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*ModlogEntry, 0)
	for _, entry := range s.log {
		if entry.GuildID != guildID {
			continue
		}
		if before != 0 && entry.ID >= before {
			continue
		}

		cop := *entry
		result = append(result, &cop)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (s *MemStore) CountLogActions(ctx context.Context, guildID, issuerID int64, actions []string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, entry := range s.log {
		if entry.GuildID != guildID || entry.IssuerID != issuerID {
			continue
		}
		if !entry.CreatedAt.After(since) {
			continue
		}
		if common.ContainsStringSlice(actions, entry.Action) {
			count++
		}
	}

	return count, nil
}

func (s *MemStore) TopWarned(ctx context.Context, guildID int64, offset, limit int) ([]*WarnRankEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int64]int)
	for _, sanction := range s.sanctions {
		if sanction.GuildID == guildID && sanction.Kind == KindWarning {
			counts[sanction.SubjectID]++
		}
	}

	entries := make([]*WarnRankEntry, 0, len(counts))
	for subject, count := range counts {
		entries = append(entries, &WarnRankEntry{SubjectID: subject, WarnCount: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WarnCount == entries[j].WarnCount {
			return entries[i].SubjectID < entries[j].SubjectID
		}
		return entries[i].WarnCount > entries[j].WarnCount
	})

	// same rank for equal counts, following ranks skip
	for i, entry := range entries {
		if i > 0 && entry.WarnCount == entries[i-1].WarnCount {
			entry.Rank = entries[i-1].Rank
		} else {
			entry.Rank = i + 1
		}
	}

	if offset >= len(entries) {
		return []*WarnRankEntry{}, nil
	}
	entries = entries[offset:]

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}
