package progress

import (
	"runtime"
	"testing"

	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestInfoUpdateAndState(t *testing.T) {
	info := NewInfo(1)
	require.Equal(t, types.ProgressInitializing, info.State())

	info.SetState(types.ProgressDownloading)
	info.Update(50, 100)
	require.Equal(t, types.ProgressDownloading, info.State())
	require.EqualValues(t, 50, info.Current())
	require.EqualValues(t, 100, info.Total())
}

func TestTrackerUpgradeBeforeCancel(t *testing.T) {
	info := NewInfo(1)
	tr := NewTracker(info)

	got, ok := tr.Upgrade()
	require.True(t, ok)
	require.Same(t, info, got)
}

func TestTrackerUpgradeAfterExplicitCancel(t *testing.T) {
	info := NewInfo(1)
	tr := NewTracker(info)

	info.Cancel()
	_, ok := tr.Upgrade()
	require.False(t, ok)
}

func TestTrackerUpgradeAfterGC(t *testing.T) {
	tr := func() *Tracker {
		info := NewInfo(1)
		return NewTracker(info)
	}()

	runtime.GC()
	runtime.GC()

	_, ok := tr.Upgrade()
	require.False(t, ok)
}

func TestEventLogDrainReturnsInOrder(t *testing.T) {
	l := NewEventLog(4)
	l.Record(1, EventBeginInstall, 0)
	l.Record(1, EventInstalled, 0)

	events := l.Drain()
	require.Len(t, events, 2)
	require.Equal(t, EventBeginInstall, events[0].Type)
	require.Equal(t, EventInstalled, events[1].Type)

	require.Empty(t, l.Drain())
}

func TestEventLogWrapsWhenFull(t *testing.T) {
	l := NewEventLog(2)
	l.Record(1, EventBeginInstall, 0)
	l.Record(1, EventInstalled, 0)
	l.Record(1, EventBeginUpdate, 0)

	events := l.Drain()
	require.Len(t, events, 2)
	require.Equal(t, EventInstalled, events[0].Type)
	require.Equal(t, EventBeginUpdate, events[1].Type)
}
