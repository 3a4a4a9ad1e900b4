package escalation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/mediocregopher/radix/v3"
	"github.com/volatiletech/null/v8"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/common/keylock"
	"github.com/vielumine/vertigo/platform"
	"github.com/vielumine/vertigo/policy"
	"github.com/vielumine/vertigo/sanctions"
)

// ErrFlagLockTimeout means the per subject serialization lock could not be
// obtained, the caller should surface a transient failure.
var ErrFlagLockTimeout = errors.Sentinel("timed out waiting for the flag lock")

// Engine recomputes a subject's flag state after every flag mutation and
// fires the termination workflow when the threshold is crossed.
type Engine struct {
	store    sanctions.Store
	policies policy.Store
	effector platform.Effector
	notifier platform.Notifier
	core     *common.Core

	locks *keylock.KeyLock[flagKey]
	clock func() time.Time
}

// NewEngine builds the engine. core may be nil in embedded or test use, the
// redis marker key and the operator notification are skipped then.
func NewEngine(store sanctions.Store, policies policy.Store, effector platform.Effector, notifier platform.Notifier, core *common.Core) *Engine {
	return &Engine{
		store:    store,
		policies: policies,
		effector: effector,
		notifier: notifier,
		core:     core,
		locks:    keylock.NewKeyLock[flagKey](),
		clock:    time.Now,
	}
}

// WithClock replaces the time source, for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// State returns the subject's current flag state and active count.
func (e *Engine) State(ctx context.Context, guildID, subjectID int64) (State, int, error) {
	count, err := e.store.ActiveCount(ctx, guildID, subjectID, sanctions.KindStaffFlag)
	if err != nil {
		return StateClear, 0, err
	}

	pol, err := e.policies.Get(ctx, guildID)
	if err != nil {
		return StateClear, 0, err
	}

	return StateForCount(count, pol.MaxFlags), count, nil
}

// HandleFlagChange reevaluates the subject after a flag was created or
// deactivated. It returns a non nil Termination if the workflow fired.
//
// The count read and the threshold decision run under a per (guild, subject)
// lock, concurrent flag mutations on the same subject serialize here. The
// workflow clears the flags it acted on, so the crossing that fired it is
// consumed and a reobservation lands on clear, never a second firing.
func (e *Engine) HandleFlagChange(ctx context.Context, guildID, subjectID, actorID int64) (*Termination, error) {
	key := flagKey{GuildID: guildID, SubjectID: subjectID}
	handle := e.locks.Lock(key, lockTimeout, lockTTL)
	if handle == -1 {
		return nil, ErrFlagLockTimeout
	}
	defer e.locks.Unlock(key, handle)

	count, err := e.store.ActiveCount(ctx, guildID, subjectID, sanctions.KindStaffFlag)
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	pol, err := e.policies.Get(ctx, guildID)
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}

	if count < pol.MaxFlags {
		return nil, nil
	}

	return e.terminate(ctx, pol, guildID, subjectID, actorID, count)
}

// terminate runs the termination workflow, best effort, nothing rolls back.
// Strip the staff roles, clear the flags, impose the suspension, log and
// notify.
func (e *Engine) terminate(ctx context.Context, pol *policy.GuildPolicy, guildID, subjectID, actorID int64, count int) (*Termination, error) {
	logger.WithField("guild", guildID).WithField("user", subjectID).
		Info("flag threshold crossed, terminating staff member")

	term := &Termination{
		GuildID:   guildID,
		SubjectID: subjectID,
		ActorID:   actorID,
		FlagCount: count,
	}

	err := e.effector.ApplyEffect(ctx, &platform.EffectRequest{
		Kind:    platform.EffectStripStaffRoles,
		GuildID: guildID,
		UserID:  subjectID,
		RoleIDs: pol.StaffTierRoles(),
		Reason:  "terminated: flag threshold reached",
	})
	if err != nil {
		logger.WithError(err).WithField("guild", guildID).Error("failed stripping staff roles during termination")
		term.Errs = append(term.Errs, err)
	}

	// flag clearing is the idempotence boundary, a failure here leaves the
	// crossing unconsumed so it must abort before the suspension is imposed
	cleared, err := e.store.DeactivateAllFlags(ctx, guildID, subjectID)
	if err != nil {
		return nil, common.ErrWithCaller(err)
	}
	term.FlagsCleared = cleared

	suspension := &sanctions.Sanction{
		Kind:      sanctions.KindImprisonment,
		GuildID:   guildID,
		SubjectID: subjectID,
		IssuerID:  e.issuerID(actorID),
		Reason:    fmt.Sprintf("automatic termination after %d staff flags", count),
	}

	id, err := e.store.Create(ctx, suspension, pol.SuspensionDuration())
	if err != nil {
		logger.WithError(err).WithField("guild", guildID).Error("failed creating the termination suspension")
		term.Errs = append(term.Errs, err)
	} else {
		term.SuspensionID = id

		err = e.effector.ApplyEffect(ctx, &platform.EffectRequest{
			Kind:     platform.EffectImprison,
			GuildID:  guildID,
			UserID:   subjectID,
			Reason:   suspension.Reason,
			Duration: pol.SuspensionDuration(),
		})
		if err != nil {
			logger.WithError(err).WithField("guild", guildID).Error("failed applying the suspension effect")
			term.Errs = append(term.Errs, err)
		}
	}

	err = e.store.AppendLog(ctx, &sanctions.ModlogEntry{
		GuildID:          guildID,
		Action:           sanctions.ActionTerminate,
		SubjectID:        subjectID,
		IssuerID:         e.issuerID(actorID),
		Reason:           suspension.Reason,
		LinkedSanctionID: nullableID(term.SuspensionID),
	})
	if err != nil {
		logger.WithError(err).WithField("guild", guildID).Error("failed writing the terminate modlog entry")
		term.Errs = append(term.Errs, err)
	}

	e.writeMarker(guildID, subjectID, pol.SuspensionDuration())
	e.notify(ctx, term, pol)

	metricsTerminations.Inc()
	return term, nil
}

// issuerID substitutes the process identity for system initiated workflow
// runs, modlog rows require an issuer.
func (e *Engine) issuerID(actorID int64) int64 {
	if actorID != 0 {
		return actorID
	}
	if e.core != nil {
		return e.core.OperatorID()
	}

	return 0
}

func (e *Engine) writeMarker(guildID, subjectID int64, suspension time.Duration) {
	if e.core == nil || e.core.RedisPool == nil {
		return
	}

	key := RedisKeyTerminated(guildID, subjectID)
	err := e.core.RedisPool.Do(radix.Cmd(nil, "SETEX", key,
		strconv.Itoa(int(suspension.Seconds())), "1"))
	common.LogIgnoreError(err, "failed setting the terminated marker key", nil)
}

func (e *Engine) notify(ctx context.Context, term *Termination, pol *policy.GuildPolicy) {
	msg := fmt.Sprintf("Staff member %d in guild %d was terminated after reaching %d flags, suspended for %s.",
		term.SubjectID, term.GuildID, term.FlagCount,
		common.HumanizeDuration(common.DurationPrecisionHours, pol.SuspensionDuration()))
	if term.PartialFailure() {
		msg += fmt.Sprintf(" %d of the steps failed, check the logs.", len(term.Errs))
	}

	if term.ActorID != 0 {
		common.LogIgnoreError(e.notifier.Notify(ctx, term.ActorID, msg),
			"failed notifying the acting admin about a termination", nil)
	}

	if e.core != nil {
		if operator := e.core.OperatorID(); operator != 0 && operator != term.ActorID {
			common.LogIgnoreError(e.notifier.Notify(ctx, operator, msg),
				"failed notifying the operator about a termination", nil)
		}
	}
}

func nullableID(id int64) (n null.Int64) {
	if id != 0 {
		n = null.Int64From(id)
	}

	return
}
