package collection

import (
	"testing"

	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestEntry() *types.Entry {
	return types.NewEntry(types.ModProfile{ID: 1}, "/mods/1")
}

func TestCollectionPutGetRemove(t *testing.T) {
	c := New()
	e := newTestEntry()
	c.Put(e)

	got, ok := c.Get(1)
	require.True(t, ok)
	require.Same(t, e, got)
	require.Equal(t, 1, c.Len())

	c.Remove(1)
	_, ok = c.Get(1)
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

func TestTransactionCommitKeepsNewState(t *testing.T) {
	e := newTestEntry()
	tx := Begin(e)
	e.SetState(types.StateDownloading)
	tx.Commit()
	tx.Rollback()

	require.Equal(t, types.StateDownloading, e.State())
}

func TestTransactionRollbackRestoresState(t *testing.T) {
	e := newTestEntry()
	require.Equal(t, types.StateInstallPending, e.State())

	tx := Begin(e)
	e.SetState(types.StateDownloading)
	tx.Rollback()

	require.Equal(t, types.StateInstallPending, e.State())
}

func TestNestedBeginIsNoOp(t *testing.T) {
	e := newTestEntry()
	outer := Begin(e)
	e.SetState(types.StateDownloading)

	inner := Begin(e)
	e.SetState(types.StateExtracting)
	inner.Rollback()
	require.Equal(t, types.StateExtracting, e.State(), "nested begin must not capture or restore a snapshot")

	outer.Rollback()
	require.Equal(t, types.StateInstallPending, e.State())
}

func TestClassify(t *testing.T) {
	require.Equal(t, OutcomeRetry, Classify(errcode.HttpConnectionFailed))
	require.Equal(t, OutcomeQuarantine, Classify(errcode.UserNotAuthenticated))
	require.Equal(t, OutcomeDeferDelete, Classify(errcode.ModUninstallPending))
	require.Equal(t, OutcomeIgnore, Classify(errcode.Cancelled))
}

func TestApplyFailureQuarantineSetsReason(t *testing.T) {
	e := newTestEntry()
	outcome := ApplyFailure(e, errcode.UserNotAuthenticated)
	require.Equal(t, OutcomeQuarantine, outcome)

	reason, ok := e.PermanentNoRetryReason()
	require.True(t, ok)
	require.Equal(t, errcode.UserNotAuthenticated.Name, reason)

	category, ok := e.PermanentNoRetryCategory()
	require.True(t, ok)
	require.Equal(t, string(errcode.UserNotAuthenticated.Family), category)
}

func TestApplyFailureRetryDecrementsBudget(t *testing.T) {
	e := newTestEntry()
	before := e.RetriesRemaining()
	ApplyFailure(e, errcode.HttpConnectionFailed)
	require.Equal(t, before-1, e.RetriesRemaining())
}
