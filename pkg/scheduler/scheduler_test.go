package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/modio-go/pkg/cache"
	"github.com/cuemby/modio-go/pkg/collection"
	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/progress"
	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	installErr   error
	installCalls int
	uninstalls   []types.ModID
	retries      []types.ModID
}

func (f *fakeDispatcher) Install(ctx context.Context, e *types.Entry) error {
	f.installCalls++
	if f.installErr != nil {
		return f.installErr
	}
	e.SetState(types.StateInstalled)
	return nil
}

func (f *fakeDispatcher) Update(ctx context.Context, e *types.Entry) error {
	e.SetState(types.StateInstalled)
	return nil
}

func (f *fakeDispatcher) Uninstall(ctx context.Context, e *types.Entry) error {
	f.uninstalls = append(f.uninstalls, e.ID)
	return nil
}

func (f *fakeDispatcher) FlushSubscriptionAdd(ctx context.Context, id types.ModID) (*types.Entry, error) {
	return types.NewEntry(types.ModProfile{ID: id}, ""), nil
}

func (f *fakeDispatcher) RetryUnsubscribe(ctx context.Context, id types.ModID) error {
	f.retries = append(f.retries, id)
	return nil
}

func newTestScheduler(disp Dispatcher) (*Scheduler, *collection.Collection, *cache.Session, *types.DeferredUnsubscribeLedger, *progress.EventLog) {
	col := collection.New()
	session := cache.NewSession()
	ledger := types.NewDeferredUnsubscribeLedger()
	events := progress.NewEventLog(32)
	return New(col, session, ledger, events, disp), col, session, ledger, events
}

func TestTickInstallsPendingEntry(t *testing.T) {
	disp := &fakeDispatcher{}
	sched, col, _, _, events := newTestScheduler(disp)

	col.Put(types.NewEntry(types.ModProfile{ID: 1}, "/mods/1"))

	err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, disp.installCalls)

	entry, _ := col.Get(1)
	require.Equal(t, types.StateInstalled, entry.State())

	recorded := events.Drain()
	require.Len(t, recorded, 2)
	require.Equal(t, progress.EventBeginInstall, recorded[0].Type)
	require.Equal(t, progress.EventInstalled, recorded[1].Type)
}

func TestTickSkipsWhenRateLimited(t *testing.T) {
	disp := &fakeDispatcher{}
	sched, col, session, _, _ := newTestScheduler(disp)
	col.Put(types.NewEntry(types.ModProfile{ID: 1}, "/mods/1"))
	session.SetRateLimited(time.Hour)

	err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, disp.installCalls)
}

func TestTickAppliesSubscriptionDelta(t *testing.T) {
	disp := &fakeDispatcher{}
	sched, col, _, _, _ := newTestScheduler(disp)

	sched.SetDesiredSubscriptions(types.SubscriptionList{5: struct{}{}})
	err := sched.Tick(context.Background())
	require.NoError(t, err)

	_, ok := col.Get(5)
	require.True(t, ok)
}

func TestTickQuarantinesOnUnrecoverableFailure(t *testing.T) {
	disp := &fakeDispatcher{installErr: errcode.UserNotAuthenticated}
	sched, col, _, _, _ := newTestScheduler(disp)
	col.Put(types.NewEntry(types.ModProfile{ID: 1}, "/mods/1"))

	err := sched.Tick(context.Background())
	require.Error(t, err)

	entry, _ := col.Get(1)
	_, quarantined := entry.PermanentNoRetryReason()
	require.True(t, quarantined)
}

func TestTickMovesDeleteDeferredFailureToLedger(t *testing.T) {
	disp := &fakeDispatcher{installErr: errcode.ModUninstallPending}
	sched, col, _, ledger, _ := newTestScheduler(disp)
	col.Put(types.NewEntry(types.ModProfile{ID: 1}, "/mods/1"))

	err := sched.Tick(context.Background())
	require.Error(t, err)

	_, ok := col.Get(1)
	require.False(t, ok, "entry should be removed from the collection once deferred")
	require.Contains(t, ledger.Snapshot(), types.ModID(1))
}

func TestTickRetriesDeferredUnsubscribe(t *testing.T) {
	disp := &fakeDispatcher{}
	sched, _, _, ledger, _ := newTestScheduler(disp)
	ledger.Add(42)

	err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Contains(t, disp.retries, types.ModID(42))
	require.Empty(t, ledger.Snapshot())
}

func TestTickPrioritizesNotYetRetriedEntries(t *testing.T) {
	disp := &fakeDispatcher{}
	sched, col, _, _, _ := newTestScheduler(disp)

	retried := types.NewEntry(types.ModProfile{ID: 1}, "/mods/1")
	retried.DecrementRetries()
	fresh := types.NewEntry(types.ModProfile{ID: 2}, "/mods/2")
	col.Put(retried)
	col.Put(fresh)

	err := sched.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.StateInstalled, fresh.State(), "not-yet-retried entry should go first")
	require.Equal(t, types.StateInstallPending, retried.State())
}
