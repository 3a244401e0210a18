package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := DeriveKeyFromDeviceID("device-123")
	plaintext := []byte(`{"token":"abc"}`)

	ciphertext, err := Seal(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := Open(key, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key := DeriveKeyFromDeviceID("device-123")
	other := DeriveKeyFromDeviceID("device-456")

	ciphertext, err := Seal(key, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(other, ciphertext)
	require.Error(t, err)
}

func TestOpenRejectsTruncatedCiphertext(t *testing.T) {
	key := DeriveKeyFromDeviceID("device-123")
	_, err := Open(key, []byte("x"))
	require.Error(t, err)
}

func TestDeriveKeyIsDeterministic(t *testing.T) {
	require.Equal(t, DeriveKeyFromDeviceID("same"), DeriveKeyFromDeviceID("same"))
	require.NotEqual(t, DeriveKeyFromDeviceID("a"), DeriveKeyFromDeviceID("b"))
}
