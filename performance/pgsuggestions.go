package performance

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/vielumine/vertigo/common"
)

// PGSuggestionStore is the postgres backed SuggestionStore.
type PGSuggestionStore struct {
	db    *sqlx.DB
	idgen func() int64
	clock func() time.Time
}

var _ SuggestionStore = (*PGSuggestionStore)(nil)

func NewPGSuggestionStore(core *common.Core) *PGSuggestionStore {
	return &PGSuggestionStore{
		db:    core.PQ,
		idgen: core.GenID,
		clock: time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *PGSuggestionStore) WithClock(clock func() time.Time) *PGSuggestionStore {
	s.clock = clock
	return s
}

func (s *PGSuggestionStore) Insert(ctx context.Context, suggestion *Suggestion) (int64, error) {
	if err := suggestion.validate(); err != nil {
		return 0, err
	}

	suggestion.ID = s.idgen()
	suggestion.Status = StatusPending
	suggestion.CreatedAt = s.clock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO promotion_suggestions
		(id, guild_id, user_id, kind, current_level, suggested_level, confidence, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		suggestion.ID, suggestion.GuildID, suggestion.UserID, suggestion.Type,
		suggestion.CurrentLevel, suggestion.SuggestedLevel, suggestion.Confidence,
		suggestion.Reason, suggestion.Status, suggestion.CreatedAt)

	return suggestion.ID, common.ErrWithCaller(err)
}

func (s *PGSuggestionStore) Get(ctx context.Context, id int64) (*Suggestion, error) {
	var suggestion Suggestion
	err := s.db.GetContext(ctx, &suggestion, `SELECT * FROM promotion_suggestions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrSuggestionNotFound
	}
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	return &suggestion, nil
}

func (s *PGSuggestionStore) ListPending(ctx context.Context, guildID int64) ([]*Suggestion, error) {
	result := make([]*Suggestion, 0)
	err := s.db.SelectContext(ctx, &result,
		`SELECT * FROM promotion_suggestions WHERE guild_id = $1 AND status = $2 ORDER BY id ASC`,
		guildID, StatusPending)

	return result, common.ErrWithCaller(err)
}

func (s *PGSuggestionStore) PendingExists(ctx context.Context, guildID, userID int64, typ SuggestionType) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM promotion_suggestions
		WHERE guild_id = $1 AND user_id = $2 AND kind = $3 AND status = $4)`,
		guildID, userID, typ, StatusPending).Scan(&exists)

	return exists, common.ErrWithCaller(err)
}

func (s *PGSuggestionStore) SetStatus(ctx context.Context, id, reviewerID int64, status SuggestionStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE promotion_suggestions
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = $5`,
		id, status, null.Int64From(reviewerID), s.clock(), StatusPending)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return common.ErrWithCaller(err)
	}

	if affected > 0 {
		return nil
	}

	// resolved already is a no-op, missing entirely is reported
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM promotion_suggestions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	if !exists {
		return ErrSuggestionNotFound
	}

	return nil
}
