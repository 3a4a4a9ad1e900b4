// Package reconciler runs the periodic expiry sweeps. Every active, time
// bounded sanction is deactivated within one polling interval of its
// deadline, with its external effect attempted at least once.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/volatiletech/null/v8"

	"github.com/vielumine/vertigo/common"
	"github.com/vielumine/vertigo/common/config"
	"github.com/vielumine/vertigo/escalation"
	"github.com/vielumine/vertigo/platform"
	"github.com/vielumine/vertigo/sanctions"
)

var logger = common.GetPluginLogger(&Reconciler{})

var (
	confInterval = config.RegisterOption("vertigo.reconciler.interval", "Seconds between expiry sweeps", 60)
	confBatch    = config.RegisterOption("vertigo.reconciler.batch_size", "Max records handled per sweep tick, backlog spills to the next tick", 100)
	confAlert    = config.RegisterOption("vertigo.reconciler.alert_threshold", "Consecutive failed ticks before the operator is alerted", 5)
)

var (
	metricsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vertigo_reconciler_expired_total",
		Help: "Sanctions deactivated by the expiry sweep",
	}, []string{"kind"})

	metricsEffectFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vertigo_reconciler_effect_failures_total",
		Help: "External effect failures during expiry sweeps, the record is retried next tick",
	}, []string{"kind"})

	metricsAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vertigo_reconciler_aborted_ticks_total",
		Help: "Sweep ticks aborted because the store was unavailable",
	}, []string{"kind"})

	metricsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vertigo_reconciler_skipped_ticks_total",
		Help: "Sweep ticks skipped because the previous one was still running",
	}, []string{"kind"})
)

// sweptKinds are the kinds with a deadline the sweeps watch. PersistentRole
// never expires on its own.
var sweptKinds = []sanctions.Kind{
	sanctions.KindWarning,
	sanctions.KindMute,
	sanctions.KindTempRole,
	sanctions.KindStaffFlag,
	sanctions.KindImprisonment,
}

// Reconciler runs one sweep loop per sanction kind. It registers as a
// background worker plugin.
type Reconciler struct {
	store    sanctions.Store
	effector platform.Effector
	notifier platform.Notifier
	engine   *escalation.Engine

	interval       time.Duration
	batchSize      int
	alertThreshold int
	operatorID     int64

	clock func() time.Time

	mu           sync.Mutex
	running      map[sanctions.Kind]bool
	consecFails  map[sanctions.Kind]int
	alertsSent   *gocache.Cache
	stopWorkers  chan struct{}
	workersWG    sync.WaitGroup
}

func (r *Reconciler) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Expiry Reconciler",
		SysName:  "reconciler",
		Category: common.PluginCategoryAccountability,
	}
}

// New builds the reconciler from the process config. The escalation engine
// may be nil, flag expiry then skips the state recheck.
func New(core *common.Core, store sanctions.Store, effector platform.Effector, notifier platform.Notifier, engine *escalation.Engine) *Reconciler {
	r := &Reconciler{
		store:    store,
		effector: effector,
		notifier: notifier,
		engine:   engine,

		interval:       time.Second * time.Duration(confInterval.GetInt()),
		batchSize:      confBatch.GetInt(),
		alertThreshold: confAlert.GetInt(),

		clock:       time.Now,
		running:     make(map[sanctions.Kind]bool),
		consecFails: make(map[sanctions.Kind]int),
		alertsSent:  gocache.New(time.Hour, time.Hour),
		stopWorkers: make(chan struct{}),
	}

	if core != nil {
		r.operatorID = core.OperatorID()
	}

	return r
}

// WithClock replaces the time source, for deterministic tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// WithSchedule overrides the config derived tick schedule, for tests.
func (r *Reconciler) WithSchedule(interval time.Duration, batchSize, alertThreshold int) *Reconciler {
	r.interval = interval
	r.batchSize = batchSize
	r.alertThreshold = alertThreshold
	return r
}

func (r *Reconciler) RunBackgroundWorker() {
	for _, kind := range sweptKinds {
		r.workersWG.Add(1)
		go r.runLoop(kind)
	}
}

func (r *Reconciler) StopBackgroundWorker(wg *sync.WaitGroup) {
	close(r.stopWorkers)
	r.workersWG.Wait()
	wg.Done()
}

func (r *Reconciler) runLoop(kind sanctions.Kind) {
	defer r.workersWG.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunTick(context.Background(), kind)
		case <-r.stopWorkers:
			return
		}
	}
}

// RunTick runs a single sweep for the kind. A tick still running when the
// next is due is skipped, never queued.
func (r *Reconciler) RunTick(ctx context.Context, kind sanctions.Kind) {
	r.mu.Lock()
	if r.running[kind] {
		r.mu.Unlock()
		metricsSkipped.With(prometheus.Labels{"kind": kind.String()}).Inc()
		return
	}
	r.running[kind] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running[kind] = false
		r.mu.Unlock()
	}()

	expired, err := r.store.ListExpired(ctx, kind, r.clock(), r.batchSize)
	if err != nil {
		logger.WithError(err).WithField("kind", kind.String()).Error("store unavailable, aborting the sweep tick")
		metricsAborted.With(prometheus.Labels{"kind": kind.String()}).Inc()
		r.recordTickFailure(ctx, kind, err)
		return
	}

	r.resetTickFailures(kind)

	for _, sanction := range expired {
		r.reconcileOne(ctx, sanction)
	}
}

// reconcileOne handles one expired record, failures are isolated to it. The
// effect runs first, deactivation is the durability boundary, if either
// fails the record stays active and is retried next tick. Effects are
// ensure-absent so the retry is harmless.
func (r *Reconciler) reconcileOne(ctx context.Context, sanction *sanctions.Sanction) {
	if req := expiryEffect(sanction); req != nil {
		effectCtx, cancel := context.WithTimeout(ctx, r.interval)
		err := r.effector.ApplyEffect(effectCtx, req)
		cancel()

		if err != nil {
			logger.WithError(err).WithField("guild", sanction.GuildID).WithField("sanction", sanction.ID).
				Error("failed applying the expiry effect, retrying next tick")
			metricsEffectFailed.With(prometheus.Labels{"kind": sanction.Kind.String()}).Inc()
			return
		}
	}

	err := r.store.Deactivate(ctx, sanction.ID)
	if err != nil {
		logger.WithError(err).WithField("sanction", sanction.ID).Error("failed deactivating an expired sanction")
		return
	}

	err = r.store.AppendLog(ctx, &sanctions.ModlogEntry{
		GuildID:          sanction.GuildID,
		Action:           sanctions.ActionExpired(sanction.Kind),
		SubjectID:        sanction.SubjectID,
		IssuerID:         sanction.IssuerID,
		Reason:           "expired",
		LinkedSanctionID: null.Int64From(sanction.ID),
	})
	common.LogIgnoreError(err, "failed writing the expiry modlog entry", nil)

	metricsExpired.With(prometheus.Labels{"kind": sanction.Kind.String()}).Inc()

	if sanction.Kind == sanctions.KindStaffFlag && r.engine != nil {
		_, err = r.engine.HandleFlagChange(ctx, sanction.GuildID, sanction.SubjectID, 0)
		common.LogIgnoreError(err, "failed rechecking the flag state after expiry", nil)
	}
}

// expiryEffect returns the external effect undoing the sanction, nil for
// kinds that are records only.
func expiryEffect(sanction *sanctions.Sanction) *platform.EffectRequest {
	switch sanction.Kind {
	case sanctions.KindMute:
		return &platform.EffectRequest{
			Kind:    platform.EffectUnmute,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleIDs: sanction.RemovedRoles,
			Reason:  "mute expired",
		}
	case sanctions.KindTempRole:
		return &platform.EffectRequest{
			Kind:    platform.EffectRemoveRole,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleID:  sanction.RoleID,
			Reason:  "temporary role expired",
		}
	case sanctions.KindImprisonment:
		return &platform.EffectRequest{
			Kind:    platform.EffectRelease,
			GuildID: sanction.GuildID,
			UserID:  sanction.SubjectID,
			RoleIDs: sanction.RemovedRoles,
			Reason:  "imprisonment expired",
		}
	}

	return nil
}

// recordTickFailure tracks consecutive store failures per kind, a sustained
// run past the threshold alerts the operator once per crossing.
func (r *Reconciler) recordTickFailure(ctx context.Context, kind sanctions.Kind, cause error) {
	r.mu.Lock()
	r.consecFails[kind]++
	fails := r.consecFails[kind]
	r.mu.Unlock()

	if fails < r.alertThreshold {
		return
	}

	alertKey := kind.String()
	if _, sent := r.alertsSent.Get(alertKey); sent {
		return
	}
	r.alertsSent.SetDefault(alertKey, true)

	if r.operatorID == 0 {
		return
	}

	msg := fmt.Sprintf("Expiry sweeps for %s sanctions have failed %d times in a row, last error: %v",
		kind.String(), fails, cause)
	common.LogIgnoreError(r.notifier.Notify(ctx, r.operatorID, msg), "failed alerting the operator", nil)
}

func (r *Reconciler) resetTickFailures(kind sanctions.Kind) {
	r.mu.Lock()
	r.consecFails[kind] = 0
	r.mu.Unlock()

	r.alertsSent.Delete(kind.String())
}
