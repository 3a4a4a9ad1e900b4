package performance

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/volatiletech/null/v8"

	"github.com/vielumine/vertigo/hierarchy"
)

var (
	// ErrSuggestionNotFound is returned when reviewing an unknown suggestion.
	ErrSuggestionNotFound = errors.Sentinel("suggestion not found")

	// ErrLowConfidence guards the store against persisting suggestions under
	// the review threshold, the analyzer filters them before insert.
	ErrLowConfidence = errors.Sentinel("suggestion confidence below the persistence threshold")
)

// MinPersistConfidence is the floor under which suggestions are discarded
// instead of persisted.
const MinPersistConfidence = 0.5

type SuggestionType string

const (
	TypePromotion       SuggestionType = "promotion"
	TypeDemotionWarning SuggestionType = "demotion_warning"
)

type SuggestionStatus string

const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusDenied   SuggestionStatus = "denied"
)

// Suggestion is one advisory promotion or demotion-warning record awaiting
// human review.
type Suggestion struct {
	ID      int64          `db:"id"`
	GuildID int64          `db:"guild_id"`
	UserID  int64          `db:"user_id"`
	Type    SuggestionType `db:"kind"`

	CurrentLevel   hierarchy.Level `db:"current_level"`
	SuggestedLevel hierarchy.Level `db:"suggested_level"`

	Confidence float64 `db:"confidence"`
	Reason     string  `db:"reason"`

	Status     SuggestionStatus `db:"status"`
	ReviewedBy null.Int64       `db:"reviewed_by"`
	ReviewedAt null.Time        `db:"reviewed_at"`

	CreatedAt time.Time `db:"created_at"`
}

func (s *Suggestion) validate() error {
	if s.Confidence < MinPersistConfidence {
		return ErrLowConfidence
	}
	if s.Confidence > 1 {
		return errors.New("confidence above one")
	}

	return nil
}

// SuggestionStore persists suggestions and their review outcomes.
type SuggestionStore interface {
	// Insert persists a pending suggestion, rejecting confidence outside
	// [MinPersistConfidence, 1].
	Insert(ctx context.Context, s *Suggestion) (int64, error)

	// Get returns the suggestion or ErrSuggestionNotFound.
	Get(ctx context.Context, id int64) (*Suggestion, error)

	// ListPending returns the guild's pending suggestions, oldest first.
	ListPending(ctx context.Context, guildID int64) ([]*Suggestion, error)

	// PendingExists reports whether the subject already has a pending
	// suggestion of the type, the analyzer skips duplicates.
	PendingExists(ctx context.Context, guildID, userID int64, typ SuggestionType) (bool, error)

	// SetStatus resolves a pending suggestion. Reviewing an already resolved
	// suggestion is a no-op, approval never mutates anything beyond the
	// suggestion row itself.
	SetStatus(ctx context.Context, id, reviewerID int64, status SuggestionStatus) error
}

var SuggestionDBSchemas = []string{`
CREATE TABLE IF NOT EXISTS promotion_suggestions (
	id BIGINT PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,
	kind TEXT NOT NULL,

	current_level INT NOT NULL,
	suggested_level INT NOT NULL,

	confidence DOUBLE PRECISION NOT NULL,
	reason TEXT NOT NULL DEFAULT '',

	status TEXT NOT NULL DEFAULT 'pending',
	reviewed_by BIGINT,
	reviewed_at TIMESTAMP WITH TIME ZONE,

	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS promotion_suggestions_guild_idx ON promotion_suggestions (guild_id, status);
`}
