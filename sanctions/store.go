package sanctions

import (
	"context"
	"time"
)

// Store is the persistence contract for sanctions and the modlog. Both the
// postgres and the in memory implementations satisfy it with the same
// semantics, the in memory one backs tests and embedders.
//
// Store methods have no side effects beyond persistence, external role and
// timeout mutation belongs to the caller.
type Store interface {
	// Create validates and persists a new sanction, returning its id. The
	// expiry deadline is computed from duration, kinds listed by
	// RequiresDuration reject a non-positive duration with a
	// ValidationError.
	//
	// For kinds with a singleton constraint (one active mute or imprisonment
	// per subject, one active role sanction per subject and role) creating a
	// duplicate refreshes the existing active row instead, merging role
	// snapshots, and returns the existing id.
	Create(ctx context.Context, s *Sanction, duration time.Duration) (int64, error)

	// Get returns the sanction or ErrNotFound.
	Get(ctx context.Context, id int64) (*Sanction, error)

	// Deactivate marks the sanction inactive. It is an idempotent no-op on
	// an already inactive sanction and returns ErrNotFound when no such row
	// exists at all.
	Deactivate(ctx context.Context, id int64) error

	// DeactivateAllFlags deactivates every active staff flag on the subject,
	// returning how many were cleared.
	DeactivateAllFlags(ctx context.Context, guildID, subjectID int64) (int, error)

	// ListActive returns the subject's active sanctions of the kind,
	// creation ascending.
	ListActive(ctx context.Context, guildID, subjectID int64, kind Kind) ([]*Sanction, error)

	// ListBySubject returns the subject's sanction history, newest first.
	ListBySubject(ctx context.Context, guildID, subjectID int64, includeInactive bool, limit int) ([]*Sanction, error)

	// ListExpired returns up to limit active sanctions of the kind whose
	// deadline is at or before now, oldest deadline first.
	ListExpired(ctx context.Context, kind Kind, now time.Time, limit int) ([]*Sanction, error)

	// ActiveCount counts the subject's active sanctions of the kind. Reads
	// observe all writes that completed before the call, the escalation
	// engine depends on that.
	ActiveCount(ctx context.Context, guildID, subjectID int64, kind Kind) (int, error)

	// AppendLog appends an immutable modlog entry.
	AppendLog(ctx context.Context, entry *ModlogEntry) error

	// ListLog returns modlog entries for the guild, newest first. A non-zero
	// before acts as an exclusive upper id bound for paging.
	ListLog(ctx context.Context, guildID int64, limit int, before int64) ([]*ModlogEntry, error)

	// CountLogActions counts modlog entries by the issuer matching any of
	// the action names, strictly after since.
	CountLogActions(ctx context.Context, guildID, issuerID int64, actions []string, since time.Time) (int, error)

	// TopWarned ranks subjects by their all time warning count.
	TopWarned(ctx context.Context, guildID int64, offset, limit int) ([]*WarnRankEntry, error)
}

// WarnRankEntry is one row of the warning leaderboard.
type WarnRankEntry struct {
	Rank      int   `db:"rank"`
	SubjectID int64 `db:"subject_id"`
	WarnCount int   `db:"warn_count"`
}
