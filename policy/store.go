package policy

import (
	"context"

	"emperror.dev/errors"
)

// ErrInvalidPolicy wraps validation failures on save.
var ErrInvalidPolicy = errors.Sentinel("invalid guild policy")

// Store is the persistence contract for guild policies. Get never fails on a
// missing row, it returns the defaults instead, a guild without a saved
// policy behaves exactly like one that saved the defaults.
type Store interface {
	Get(ctx context.Context, guildID int64) (*GuildPolicy, error)

	// Save validates and upserts the policy.
	Save(ctx context.Context, pol *GuildPolicy) error

	// ListGuilds returns the ids of every guild with a saved policy, the
	// scoring sweep iterates these.
	ListGuilds(ctx context.Context) ([]int64, error)
}
