package policy

import (
	"context"
	"strconv"
	"time"

	"github.com/karlseguin/ccache"

	"github.com/vielumine/vertigo/common/pubsub"
)

// EvtInvalidatePolicyCache is the pubsub event other nodes handle by
// evicting their cached copy of a guild's policy.
const EvtInvalidatePolicyCache = "invalidate_guild_policy_cache"

const cacheTTL = time.Minute * 10

// CachedStore wraps another Store with an in process cache, invalidated
// across nodes through pubsub on save.
type CachedStore struct {
	inner Store
	cache *ccache.Cache
	ps    *pubsub.PubSub
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps inner. ps may be nil for single node use, in which
// case saves only invalidate the local cache.
func NewCachedStore(inner Store, ps *pubsub.PubSub) *CachedStore {
	s := &CachedStore{
		inner: inner,
		cache: ccache.New(ccache.Configure().MaxSize(25000)),
		ps:    ps,
	}

	if ps != nil {
		ps.AddHandler(EvtInvalidatePolicyCache, s.handleInvalidateEvt, nil)
	}

	return s
}

func cacheKey(guildID int64) string {
	return "guild_policy:" + strconv.FormatInt(guildID, 10)
}

func (s *CachedStore) Get(ctx context.Context, guildID int64) (*GuildPolicy, error) {
	item, err := s.cache.Fetch(cacheKey(guildID), cacheTTL, func() (interface{}, error) {
		return s.inner.Get(ctx, guildID)
	})
	if err != nil {
		return nil, err
	}

	cop := *item.Value().(*GuildPolicy)
	return &cop, nil
}

func (s *CachedStore) Save(ctx context.Context, pol *GuildPolicy) error {
	err := s.inner.Save(ctx, pol)
	if err != nil {
		return err
	}

	s.InvalidateCache(pol.GuildID)
	if s.ps != nil {
		s.ps.PublishLogErr(EvtInvalidatePolicyCache, pol.GuildID, nil)
	}

	return nil
}

func (s *CachedStore) ListGuilds(ctx context.Context) ([]int64, error) {
	return s.inner.ListGuilds(ctx)
}

// InvalidateCache evicts the local cached copy only, the pubsub event takes
// care of the other nodes.
func (s *CachedStore) InvalidateCache(guildID int64) {
	s.cache.Delete(cacheKey(guildID))
}

func (s *CachedStore) handleInvalidateEvt(evt *pubsub.Event) {
	s.InvalidateCache(evt.TargetGuildInt)
}
