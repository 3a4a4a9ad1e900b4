package sanctions

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vielumine/vertigo/common"
)

// PGStore is the postgres backed Store.
type PGStore struct {
	db    *sqlx.DB
	idgen func() int64
	clock func() time.Time
}

var _ Store = (*PGStore)(nil)

func NewPGStore(core *common.Core) *PGStore {
	return &PGStore{
		db:    core.PQ,
		idgen: core.GenID,
		clock: time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (s *PGStore) WithClock(clock func() time.Time) *PGStore {
	s.clock = clock
	return s
}

func (s *PGStore) Create(ctx context.Context, sanction *Sanction, duration time.Duration) (int64, error) {
	if err := validateNew(sanction, duration); err != nil {
		return 0, err
	}

	stamp(sanction, s.idgen(), s.clock(), duration)

	if !sanction.Kind.SingletonPerSubject() && !sanction.Kind.SingletonPerRole() {
		err := s.insert(ctx, sanction)
		return sanction.ID, err
	}

	id, err := s.createSingleton(ctx, sanction)
	if err != nil && isUniqueViolation(err) {
		// lost a race against a concurrent create, rerun as a refresh
		id, err = s.createSingleton(ctx, sanction)
	}

	return id, err
}

// createSingleton refreshes the existing active row if there is one,
// otherwise inserts. The partial unique indexes backstop concurrent inserts.
func (s *PGStore) createSingleton(ctx context.Context, sanction *Sanction) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, common.ErrWithCaller(err)
	}
	defer tx.Rollback()

	query := `SELECT id, removed_roles FROM sanctions
	WHERE guild_id = $1 AND subject_id = $2 AND kind = $3 AND active`
	args := []interface{}{sanction.GuildID, sanction.SubjectID, sanction.Kind}

	if sanction.Kind.SingletonPerRole() {
		query += ` AND role_id = $4`
		args = append(args, sanction.RoleID)
	}

	query += ` FOR UPDATE`

	var existingID int64
	var existingRoles pq.Int64Array
	err = tx.QueryRowContext(ctx, query, args...).Scan(&existingID, &existingRoles)
	if err != nil && err != sql.ErrNoRows {
		return 0, common.ErrWithCaller(err)
	}

	if err == sql.ErrNoRows {
		_, err = tx.ExecContext(ctx, insertQuery,
			sanction.ID, sanction.GuildID, sanction.Kind, sanction.SubjectID, sanction.IssuerID,
			sanction.Reason, sanction.CreatedAt, sanction.ExpiresAt, sanction.Active,
			sanction.RoleID, sanction.RemovedRoles)
		if err != nil {
			return 0, common.ErrWithCaller(err)
		}

		return sanction.ID, tx.Commit()
	}

	merged := pq.Int64Array(common.MergeInt64Slices(existingRoles, sanction.RemovedRoles))
	_, err = tx.ExecContext(ctx, `UPDATE sanctions SET
		issuer_id = $2, reason = $3, expires_at = $4, removed_roles = $5
	WHERE id = $1`, existingID, sanction.IssuerID, sanction.Reason, sanction.ExpiresAt, merged)
	if err != nil {
		return 0, common.ErrWithCaller(err)
	}

	sanction.ID = existingID
	sanction.RemovedRoles = merged
	return existingID, tx.Commit()
}

const insertQuery = `INSERT INTO sanctions
	(id, guild_id, kind, subject_id, issuer_id, reason, created_at, expires_at, active, role_id, removed_roles)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *PGStore) insert(ctx context.Context, sanction *Sanction) error {
	_, err := s.db.ExecContext(ctx, insertQuery,
		sanction.ID, sanction.GuildID, sanction.Kind, sanction.SubjectID, sanction.IssuerID,
		sanction.Reason, sanction.CreatedAt, sanction.ExpiresAt, sanction.Active,
		sanction.RoleID, sanction.RemovedRoles)

	return common.ErrWithCaller(err)
}

func isUniqueViolation(err error) bool {
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		return pqerr.Code == "23505"
	}

	return false
}

func (s *PGStore) Get(ctx context.Context, id int64) (*Sanction, error) {
	var sanction Sanction
	err := s.db.GetContext(ctx, &sanction, `SELECT * FROM sanctions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	return &sanction, nil
}

func (s *PGStore) Deactivate(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE sanctions SET active = FALSE WHERE id = $1 AND active`, id)
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

	// already inactive is a no-op, missing entirely is reported
	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sanctions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	if !exists {
		return ErrNotFound
	}

	return nil
}

func (s *PGStore) DeactivateAllFlags(ctx context.Context, guildID, subjectID int64) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sanctions SET active = FALSE WHERE guild_id = $1 AND subject_id = $2 AND kind = $3 AND active`,
		guildID, subjectID, KindStaffFlag)
	if err != nil {
		return 0, common.ErrWithCaller(err)
	}

	affected, err := result.RowsAffected()
	return int(affected), common.ErrWithCaller(err)
}

func (s *PGStore) ListActive(ctx context.Context, guildID, subjectID int64, kind Kind) ([]*Sanction, error) {
	result := make([]*Sanction, 0)
	err := s.db.SelectContext(ctx, &result,
		`SELECT * FROM sanctions WHERE guild_id = $1 AND subject_id = $2 AND kind = $3 AND active ORDER BY created_at ASC`,
		guildID, subjectID, kind)

	return result, common.ErrWithCaller(err)
}

func (s *PGStore) ListBySubject(ctx context.Context, guildID, subjectID int64, includeInactive bool, limit int) ([]*Sanction, error) {
	query := `SELECT * FROM sanctions WHERE guild_id = $1 AND subject_id = $2`
	if !includeInactive {
		query += ` AND active`
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	result := make([]*Sanction, 0)
	err := s.db.SelectContext(ctx, &result, query, guildID, subjectID, limit)
	return result, common.ErrWithCaller(err)
}

func (s *PGStore) ListExpired(ctx context.Context, kind Kind, now time.Time, limit int) ([]*Sanction, error) {
	result := make([]*Sanction, 0)
	err := s.db.SelectContext(ctx, &result,
		`SELECT * FROM sanctions WHERE kind = $1 AND active AND expires_at IS NOT NULL AND expires_at <= $2
		ORDER BY expires_at ASC LIMIT $3`, kind, now, limit)

	return result, common.ErrWithCaller(err)
}

func (s *PGStore) ActiveCount(ctx context.Context, guildID, subjectID int64, kind Kind) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sanctions WHERE guild_id = $1 AND subject_id = $2 AND kind = $3 AND active`,
		guildID, subjectID, kind).Scan(&count)

	return count, common.ErrWithCaller(err)
}

func (s *PGStore) AppendLog(ctx context.Context, entry *ModlogEntry) error {
	entry.ID = s.idgen()
	entry.CreatedAt = s.clock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO modlog
		(id, guild_id, action, subject_id, issuer_id, reason, linked_sanction_id, linked_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.GuildID, entry.Action, entry.SubjectID, entry.IssuerID,
		entry.Reason, entry.LinkedSanctionID, entry.LinkedMessageID, entry.CreatedAt)

	return common.ErrWithCaller(err)
}

func (s *PGStore) ListLog(ctx context.Context, guildID int64, limit int, before int64) ([]*ModlogEntry, error) {
	result := make([]*ModlogEntry, 0)

	var err error
	if before != 0 {
		err = s.db.SelectContext(ctx, &result,
			`SELECT * FROM modlog WHERE guild_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`,
			guildID, before, limit)
	} else {
		err = s.db.SelectContext(ctx, &result,
			`SELECT * FROM modlog WHERE guild_id = $1 ORDER BY id DESC LIMIT $2`,
			guildID, limit)
	}

	return result, common.ErrWithCaller(err)
}

func (s *PGStore) CountLogActions(ctx context.Context, guildID, issuerID int64, actions []string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM modlog WHERE guild_id = $1 AND issuer_id = $2 AND action = ANY($3) AND created_at > $4`,
		guildID, issuerID, pq.Array(actions), since).Scan(&count)

	return count, common.ErrWithCaller(err)
}

func (s *PGStore) TopWarned(ctx context.Context, guildID int64, offset, limit int) ([]*WarnRankEntry, error) {
	const query = `SELECT subject_id, COUNT(id) AS warn_count,
	RANK() OVER (ORDER BY COUNT(id) DESC) AS rank
	FROM sanctions WHERE guild_id = $1 AND kind = $2
	GROUP BY subject_id
	ORDER BY warn_count DESC
	LIMIT $3 OFFSET $4`

	result := make([]*WarnRankEntry, 0)
	err := s.db.SelectContext(ctx, &result, query, guildID, KindWarning, limit, offset)
	return result, common.ErrWithCaller(err)
}
