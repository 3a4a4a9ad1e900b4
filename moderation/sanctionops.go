package moderation

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/platform"
	"github.com/vielumine/vertigo/policy"
	"github.com/vielumine/vertigo/sanctions"
)

// IssueSanction validates and persists a sanction of any kind without a role
// payload, applies its side effect and runs the escalation check for staff
// flags. A zero duration falls back to the policy default for the kinds
// that have one, role sanctions go through IssueRoleSanction.
func (s *Service) IssueSanction(ctx context.Context, kind sanctions.Kind, guildID, subjectID, issuerID int64, reason string, duration time.Duration) (int64, error) {
	if kind.RequiresRole() {
		return 0, &sanctions.ValidationError{Field: "role_id", Message: "role sanctions need a role, use IssueRoleSanction"}
	}

	return s.issue(ctx, &sanctions.Sanction{
		Kind:      kind,
		GuildID:   guildID,
		SubjectID: subjectID,
		IssuerID:  issuerID,
		Reason:    reason,
	}, duration)
}

// IssueRoleSanction persists a temporary or persistent role sanction. A
// temporary role requires an explicit positive duration, there is no policy
// default for it.
func (s *Service) IssueRoleSanction(ctx context.Context, kind sanctions.Kind, guildID, subjectID, issuerID, roleID int64, reason string, duration time.Duration) (int64, error) {
	if !kind.RequiresRole() {
		return 0, &sanctions.ValidationError{Field: "kind", Message: "not a role sanction"}
	}

	return s.issue(ctx, &sanctions.Sanction{
		Kind:      kind,
		GuildID:   guildID,
		SubjectID: subjectID,
		IssuerID:  issuerID,
		Reason:    reason,
		RoleID:    roleID,
	}, duration)
}

func (s *Service) issue(ctx context.Context, sanction *sanctions.Sanction, duration time.Duration) (int64, error) {
	pol, err := s.policies.Get(ctx, sanction.GuildID)
	if err != nil {
		return 0, common.ErrWithCaller(err)
	}

	if duration == 0 {
		duration = defaultDuration(sanction.Kind, pol)
	}

	id, err := s.store.Create(ctx, sanction, duration)
	if err != nil {
		return 0, err
	}

	err = s.store.AppendLog(ctx, &sanctions.ModlogEntry{
		GuildID:          sanction.GuildID,
		Action:           sanctions.ActionIssued(sanction.Kind),
		SubjectID:        sanction.SubjectID,
		IssuerID:         sanction.IssuerID,
		Reason:           sanction.Reason,
		LinkedSanctionID: null.Int64From(id),
	})
	common.LogIgnoreError(err, "failed writing the issue modlog entry", nil)

	if req := applyEffect(sanction, duration); req != nil {
		err = s.effector.ApplyEffect(ctx, req)
		if err != nil {
			// the record stands either way, the platform layer reconverges
			logger.WithError(err).WithField("guild", sanction.GuildID).WithField("sanction", id).
				Error("failed applying the sanction effect")
		}
	}

	if sanction.Kind == sanctions.KindStaffFlag {
		term, err := s.engine.HandleFlagChange(ctx, sanction.GuildID, sanction.SubjectID, sanction.IssuerID)
		if err != nil {
			logger.WithError(err).WithField("guild", sanction.GuildID).Error("failed running the escalation check")
		} else if term != nil && term.PartialFailure() {
			logger.WithField("guild", sanction.GuildID).WithField("user", sanction.SubjectID).
				Warn("termination completed with partial failures")
		}
	}

	return id, nil
}

// defaultDuration is the policy fallback for kinds issued without an
// explicit duration.
func defaultDuration(kind sanctions.Kind, pol *policy.GuildPolicy) time.Duration {
	switch kind {
	case sanctions.KindWarning:
		return pol.WarnDuration()
	case sanctions.KindMute:
		return pol.MuteDuration()
	case sanctions.KindStaffFlag:
		return pol.FlagDuration()
	}

	return 0
}

// applyEffect returns the external effect imposing the sanction, nil for
// record only kinds.
func applyEffect(sanction *sanctions.Sanction, duration time.Duration) *platform.EffectRequest {
	switch sanction.Kind {
	case sanctions.KindMute:
		return &platform.EffectRequest{
			Kind:     platform.EffectMute,
			GuildID:  sanction.GuildID,
			UserID:   sanction.SubjectID,
			Reason:   sanction.Reason,
			Duration: duration,
		}
	case sanctions.KindTempRole, sanctions.KindPersistentRole:
		return &platform.EffectRequest{
			Kind:    platform.EffectGrantRole,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleID:  sanction.RoleID,
			Reason:  sanction.Reason,
		}
	case sanctions.KindImprisonment:
		return &platform.EffectRequest{
			Kind:     platform.EffectImprison,
			GuildID:  sanction.GuildID,
			UserID:   sanction.SubjectID,
			Reason:   sanction.Reason,
			Duration: duration,
		}
	}

	return nil
}

// reverseEffect returns the ensure-absent effect undoing the sanction, nil
// for record only kinds.
func reverseEffect(sanction *sanctions.Sanction) *platform.EffectRequest {
	switch sanction.Kind {
	case sanctions.KindMute:
		return &platform.EffectRequest{
			Kind:    platform.EffectUnmute,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleIDs: sanction.RemovedRoles,
			Reason:  "sanction reversed",
		}
	case sanctions.KindTempRole, sanctions.KindPersistentRole:
		return &platform.EffectRequest{
			Kind:    platform.EffectRemoveRole,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleID:  sanction.RoleID,
			Reason:  "sanction reversed",
		}
	case sanctions.KindImprisonment:
		return &platform.EffectRequest{
			Kind:    platform.EffectRelease,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleIDs: sanction.RemovedRoles,
			Reason:  "sanction reversed",
		}
	}

	return nil
}

// ReverseSanction explicitly undoes a sanction ahead of its expiry.
// Idempotent, reversing an already inactive sanction changes nothing.
// Returns ErrNotFound for unknown ids and for ids belonging to another
// guild.
func (s *Service) ReverseSanction(ctx context.Context, sanctionID, guildID, issuerID int64) error {
	sanction, err := s.store.Get(ctx, sanctionID)
	if err != nil {
		return err
	}

	if sanction.GuildID != guildID {
		return sanctions.ErrNotFound
	}

	if !sanction.Active {
		return nil
	}

	if req := reverseEffect(sanction); req != nil {
		err = s.effector.ApplyEffect(ctx, req)
		if err != nil {
			logger.WithError(err).WithField("guild", guildID).WithField("sanction", sanctionID).
				Error("failed undoing the sanction effect")
		}
	}

	err = s.store.Deactivate(ctx, sanctionID)
	if err != nil {
		return common.ErrWithCaller(err)
	}

	err = s.store.AppendLog(ctx, &sanctions.ModlogEntry{
		GuildID:          guildID,
		Action:           sanctions.ActionReversed(sanction.Kind),
		SubjectID:        sanction.SubjectID,
		IssuerID:         issuerID,
		Reason:           "reversed",
		LinkedSanctionID: null.Int64From(sanctionID),
	})
	common.LogIgnoreError(err, "failed writing the reversal modlog entry", nil)

	if sanction.Kind == sanctions.KindStaffFlag {
		_, err = s.engine.HandleFlagChange(ctx, guildID, sanction.SubjectID, issuerID)
		common.LogIgnoreError(err, "failed rerunning the escalation check after reversal", nil)
	}

	return nil
}

// ClearWarnings deactivates every active warning on the subject, writing a
// single audit entry for the batch. Returns how many were cleared.
func (s *Service) ClearWarnings(ctx context.Context, guildID, subjectID, issuerID int64) (int, error) {
	active, err := s.store.ListActive(ctx, guildID, subjectID, sanctions.KindWarning)
	if err != nil {
		return 0, common.ErrWithCaller(err)
	}

	cleared := 0
	for _, warning := range active {
		err = s.store.Deactivate(ctx, warning.ID)
		if err != nil {
			logger.WithError(err).WithField("sanction", warning.ID).Error("failed clearing a warning")
			continue
		}
		cleared++
	}

	if cleared > 0 {
		err = s.store.AppendLog(ctx, &sanctions.ModlogEntry{
			GuildID:   guildID,
			Action:    sanctions.ActionClearWarnings,
			SubjectID: subjectID,
			IssuerID:  issuerID,
			Reason:    "cleared warnings",
		})
		common.LogIgnoreError(err, "failed writing the clear warnings modlog entry", nil)
	}

	return cleared, nil
}
