// Package scheduler drives the reconciliation tick: it keeps the mod
// collection in sync with the desired subscription set, retries deferred
// unsubscribes, and launches at most one state transition per tick,
// generalized from the teacher's pkg/reconciler node/container
// reconciliation loop to mod subscribe/install/update/uninstall
// reconciliation.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuemby/modio-go/pkg/cache"
	"github.com/cuemby/modio-go/pkg/collection"
	"github.com/cuemby/modio-go/pkg/log"
	"github.com/cuemby/modio-go/pkg/metrics"
	"github.com/cuemby/modio-go/pkg/progress"
	"github.com/cuemby/modio-go/pkg/types"
)

// Dispatcher performs the actual network/disk work for one state
// transition. pkg/ops implements this; pkg/scheduler never imports
// pkg/ops directly so pkg/sdk is free to wire either the real operations
// or a test double.
type Dispatcher interface {
	Install(ctx context.Context, e *types.Entry) error
	Update(ctx context.Context, e *types.Entry) error
	Uninstall(ctx context.Context, e *types.Entry) error
	FlushSubscriptionAdd(ctx context.Context, id types.ModID) (*types.Entry, error)
	RetryUnsubscribe(ctx context.Context, id types.ModID) error
}

// Scheduler owns the desired-subscription bookkeeping and performs one
// reconciliation tick at a time via Tick, against a shared Collection,
// Session, and deferred-unsubscribe ledger.
type Scheduler struct {
	mu sync.Mutex

	collection *collection.Collection
	session    *cache.Session
	ledger     *types.DeferredUnsubscribeLedger
	events     *progress.EventLog
	dispatcher Dispatcher

	applied types.SubscriptionList
	desired types.SubscriptionList

	rateLimitLogged bool
}

// New builds a Scheduler over col, using session to gate on the
// rate-limit flag, ledger for deferred unsubscribe retries, events to
// record the user-visible lifecycle log, and dispatcher to perform the
// actual state transitions.
func New(col *collection.Collection, session *cache.Session, ledger *types.DeferredUnsubscribeLedger, events *progress.EventLog, dispatcher Dispatcher) *Scheduler {
	return &Scheduler{
		collection: col,
		session:    session,
		ledger:     ledger,
		events:     events,
		dispatcher: dispatcher,
		applied:    types.SubscriptionList{},
		desired:    types.SubscriptionList{},
	}
}

// SetDesiredSubscriptions replaces the target subscription set, typically
// called after a fresh "list my subscriptions" API response. The next
// Tick diffs it against what has actually been applied to the collection
// and flushes the difference.
func (s *Scheduler) SetDesiredSubscriptions(next types.SubscriptionList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desired = next
}

// Tick performs one reconciliation pass: rate-limit gate, flush
// subscription delta, retry one deferred unsubscribe, then drive at most
// one state transition. The host calls this once per pump alongside
// async.Executor.RunPending.
func (s *Scheduler) Tick(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer func() {
		metrics.ReconciliationCyclesTotal.Inc()
		timer.ObserveDuration(metrics.ReconciliationDuration)
	}()

	if s.session.RateLimited() {
		s.mu.Lock()
		alreadyLogged := s.rateLimitLogged
		s.rateLimitLogged = true
		s.mu.Unlock()
		if !alreadyLogged {
			log.WithComponent("scheduler").Info().Msg("rate limited, pausing reconciliation until the backoff window elapses")
		}
		return nil
	}
	s.mu.Lock()
	s.rateLimitLogged = false
	s.mu.Unlock()

	if err := s.flushSubscriptionDelta(ctx); err != nil {
		log.WithComponent("scheduler").Warn().Err(err).Msg("flushing subscription delta failed")
	}

	if err := s.retryOneDeferredUnsubscribe(ctx); err != nil {
		log.WithComponent("scheduler").Warn().Err(err).Msg("retrying deferred unsubscribe failed")
	}

	return s.driveOneTransition(ctx)
}

// retryOneDeferredUnsubscribe retries at most one ledger entry per tick,
// so a string of failures doesn't monopolize the tick's one network slot.
func (s *Scheduler) retryOneDeferredUnsubscribe(ctx context.Context) error {
	ids := s.ledger.Snapshot()
	if len(ids) == 0 {
		return nil
	}
	id := ids[0]
	if err := s.dispatcher.RetryUnsubscribe(ctx, id); err != nil {
		return err
	}
	s.ledger.Remove(id)
	return nil
}

// driveOneTransition picks the highest-priority entry that still requires
// work and may still be retried this session, dispatches its transition,
// and records the outcome. Priority is mods that may retry first (already
// guaranteed by the filter), then within those, mods not yet retried this
// session ahead of ones that have been.
func (s *Scheduler) driveOneTransition(ctx context.Context) error {
	candidates := s.collection.All()
	var eligible []*types.Entry
	for _, e := range candidates {
		if e.State().RequiresWork() && e.MayRetry() {
			eligible = append(eligible, e)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return !eligible[i].RetriedThisSession() && eligible[j].RetriedThisSession()
	})

	return s.transition(ctx, eligible[0])
}

func (s *Scheduler) transition(ctx context.Context, entry *types.Entry) error {
	tx := collection.Begin(entry)
	defer tx.Rollback()

	var beginEvent, doneEvent progress.EventType
	var op func(context.Context, *types.Entry) error
	var outcomeCounter *prometheus.CounterVec
	isUninstall := false

	switch entry.State() {
	case types.StateInstallPending:
		beginEvent, doneEvent, op = progress.EventBeginInstall, progress.EventInstalled, s.dispatcher.Install
		outcomeCounter = metrics.InstallsTotal
	case types.StateUpdatePending:
		beginEvent, doneEvent, op = progress.EventBeginUpdate, progress.EventUpdated, s.dispatcher.Update
		outcomeCounter = metrics.UpdatesTotal
	case types.StateUninstallPending:
		beginEvent, doneEvent, op = progress.EventBeginUninstall, progress.EventUninstalled, s.dispatcher.Uninstall
		outcomeCounter = metrics.UninstallsTotal
		isUninstall = true
	default:
		return nil
	}

	s.events.Record(entry.ID, beginEvent, 0)
	start := time.Now()
	err := op(ctx, entry)
	log.WithComponent("scheduler").Debug().
		Int64("mod_id", int64(entry.ID)).
		Dur("elapsed", time.Since(start)).
		Msg("transition dispatched")

	if err != nil {
		outcome := collection.ApplyFailure(entry, err)
		s.events.Record(entry.ID, doneEvent, 1)
		outcomeCounter.WithLabelValues("failure").Inc()
		if outcome == collection.OutcomeDeferDelete {
			s.ledger.Add(entry.ID)
			s.collection.Remove(entry.ID)
		}
		return err
	}

	outcomeCounter.WithLabelValues("success").Inc()
	tx.Commit()
	if isUninstall {
		s.collection.Remove(entry.ID)
	} else {
		entry.ResetRetries()
	}
	s.events.Record(entry.ID, doneEvent, 0)
	return nil
}
