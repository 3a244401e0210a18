package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/modio-go/pkg/security"
	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	dir := t.TempDir()
	key := security.DeriveKeyFromDeviceID("test-device")
	return NewFileStore(func(gameID int64) string {
		return filepath.Join(dir, "games", "metadata")
	}, key)
}

func TestGetDocumentMissingFileReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.GetDocument(1, 42)
	require.NoError(t, err)
	require.Empty(t, doc.Subscriptions)
}

func TestUpdateThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	doc := &Document{
		Subscriptions:        []types.ModID{1, 2, 3},
		DeferredUnsubscribes: []types.ModID{9},
		OAuth:                types.OAuthToken{Token: "abc", Expiry: 123, Status: types.OAuthValid},
		Profile:              types.UserProfile{ID: 7, Username: "player"},
		Mods: []types.PersistedSnapshot{
			{ID: 1, State: types.StateInstalled, SizeOnDisk: 1024, PathOnDisk: "/mods/1"},
		},
	}

	require.NoError(t, s.UpdateDocument(1, 42, doc))

	got, err := s.GetDocument(1, 42)
	require.NoError(t, err)
	require.Equal(t, doc.Subscriptions, got.Subscriptions)
	require.Equal(t, doc.OAuth, got.OAuth)
	require.Equal(t, doc.Profile, got.Profile)
	require.Equal(t, doc.Mods, got.Mods)
}

func TestDeleteDocumentMissingFileIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.DeleteDocument(1, 999))
}

func TestDeleteDocumentRemovesIt(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpdateDocument(1, 42, &Document{Subscriptions: []types.ModID{5}}))
	require.NoError(t, s.DeleteDocument(1, 42))

	got, err := s.GetDocument(1, 42)
	require.NoError(t, err)
	require.Empty(t, got.Subscriptions)
}

func TestDocumentIsEncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	key := security.DeriveKeyFromDeviceID("device-a")
	s := NewFileStore(func(int64) string { return dir }, key)

	require.NoError(t, s.UpdateDocument(1, 1, &Document{
		OAuth: types.OAuthToken{Token: "super-secret-token"},
	}))

	raw, err := os.ReadFile(filepath.Join(dir, "1.json"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token")
}
