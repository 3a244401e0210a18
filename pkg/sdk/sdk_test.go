package sdk

import (
	"context"
	"testing"

	"github.com/cuemby/modio-go/pkg/transport"
	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestSDK(t *testing.T) *SDK {
	return New(Config{
		GameID:      1,
		APIKey:      "test-key",
		Environment: transport.Test,
		RootPath:    t.TempDir(),
		DeviceID:    "test-device",
	})
}

func TestNewBuildsAnEmptySDK(t *testing.T) {
	s := newTestSDK(t)
	defer s.Close()

	require.Equal(t, 0, s.Collection().Len())
	require.Empty(t, s.Events())
}

func TestSaveUserThenLoadUserRoundTripsCollection(t *testing.T) {
	s := newTestSDK(t)
	defer s.Close()

	entry := types.NewEntry(types.ModProfile{ID: 42, MetadataID: "a"}, "/mods/42")
	entry.SetState(types.StateInstalled)
	entry.SetSizeOnDisk(1024)
	s.Collection().Put(entry)

	require.NoError(t, s.SaveUser(7, []types.ModID{42}))

	s2 := New(Config{
		GameID:      1,
		APIKey:      "test-key",
		Environment: transport.Test,
		RootPath:    s.cfg.RootPath,
		DeviceID:    "test-device",
	})
	defer s2.Close()

	require.NoError(t, s2.LoadUser(7))
	got, ok := s2.Collection().Get(42)
	require.True(t, ok)
	require.Equal(t, types.StateInstalled, got.State())
	size, ok := got.SizeOnDisk()
	require.True(t, ok)
	require.Equal(t, int64(1024), size)
}

func TestSwitchUserClearsCollection(t *testing.T) {
	s := newTestSDK(t)
	defer s.Close()

	s.Collection().Put(types.NewEntry(types.ModProfile{ID: 1}, "/mods/1"))
	require.Equal(t, 1, s.Collection().Len())

	s.SwitchUser()
	require.Equal(t, 0, s.Collection().Len())
}

func TestPumpRunsWithoutError(t *testing.T) {
	s := newTestSDK(t)
	defer s.Close()

	require.NoError(t, s.Pump(context.Background()))
}
