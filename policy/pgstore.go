package policy

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"

	"github.com/vielumine/vertigo/common"
)

// PGStore is the postgres backed Store.
type PGStore struct {
	db    *sqlx.DB
	clock func() time.Time
}

var _ Store = (*PGStore)(nil)

func NewPGStore(core *common.Core) *PGStore {
	return &PGStore{
		db:    core.PQ,
		clock: time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *PGStore) WithClock(clock func() time.Time) *PGStore {
	s.clock = clock
	return s
}

func (s *PGStore) Get(ctx context.Context, guildID int64) (*GuildPolicy, error) {
	var pol GuildPolicy
	err := s.db.GetContext(ctx, &pol, `SELECT * FROM guild_policy WHERE guild_id = $1`, guildID)
	if err == sql.ErrNoRows {
		return DefaultPolicy(guildID), nil
	}
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	return &pol, nil
}

func (s *PGStore) Save(ctx context.Context, pol *GuildPolicy) error {
	if err := pol.Validate(); err != nil {
		return errors.WrapIf(err, ErrInvalidPolicy.Error())
	}

	now := s.clock()
	pol.UpdatedAt = now
	if pol.CreatedAt.IsZero() {
		pol.CreatedAt = now
	}

	const query = `INSERT INTO guild_policy
		(guild_id, created_at, updated_at,
		admin_roles, head_mod_roles, senior_mod_roles, mod_roles,
		warn_days, flag_days, mute_minutes, suspension_days, max_flags,
		quota_moderator, quota_senior_mod, quota_head_mod,
		score_normalizer, score_recent_weight, score_history_weight)
	VALUES (:guild_id, :created_at, :updated_at,
		:admin_roles, :head_mod_roles, :senior_mod_roles, :mod_roles,
		:warn_days, :flag_days, :mute_minutes, :suspension_days, :max_flags,
		:quota_moderator, :quota_senior_mod, :quota_head_mod,
		:score_normalizer, :score_recent_weight, :score_history_weight)
	ON CONFLICT (guild_id) DO UPDATE SET
		updated_at = EXCLUDED.updated_at,
		admin_roles = EXCLUDED.admin_roles,
		head_mod_roles = EXCLUDED.head_mod_roles,
		senior_mod_roles = EXCLUDED.senior_mod_roles,
		mod_roles = EXCLUDED.mod_roles,
		warn_days = EXCLUDED.warn_days,
		flag_days = EXCLUDED.flag_days,
		mute_minutes = EXCLUDED.mute_minutes,
		suspension_days = EXCLUDED.suspension_days,
		max_flags = EXCLUDED.max_flags,
		quota_moderator = EXCLUDED.quota_moderator,
		quota_senior_mod = EXCLUDED.quota_senior_mod,
		quota_head_mod = EXCLUDED.quota_head_mod,
		score_normalizer = EXCLUDED.score_normalizer,
		score_recent_weight = EXCLUDED.score_recent_weight,
		score_history_weight = EXCLUDED.score_history_weight`

	_, err := s.db.NamedExecContext(ctx, query, pol)
	return common.ErrWithCaller(err)
}

func (s *PGStore) ListGuilds(ctx context.Context) ([]int64, error) {
	result := make([]int64, 0)
	err := s.db.SelectContext(ctx, &result, `SELECT guild_id FROM guild_policy ORDER BY guild_id`)
	return result, common.ErrWithCaller(err)
}
