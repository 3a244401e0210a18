package cache

import (
	"testing"
	"time"

	"github.com/cuemby/modio-go/pkg/dynbuf"
	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestURLCacheFetchBeforeExpiry(t *testing.T) {
	c := NewURLCache()
	body := dynbuf.New()
	body.Append([]byte(`{"ok":true}`))

	c.Insert("/v1/games/1/mods/2", body, 50*time.Millisecond)

	got, ok := c.Fetch("/v1/games/1/mods/2")
	require.True(t, ok)
	require.Equal(t, body.Bytes(), got.Bytes())
}

func TestURLCacheExpires(t *testing.T) {
	c := NewURLCache()
	body := dynbuf.New()
	body.Append([]byte("x"))
	c.Insert("/v1/games/1/mods/2", body, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := c.Fetch("/v1/games/1/mods/2")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestURLCacheReinsertResetsTimerNotStacksIt(t *testing.T) {
	c := NewURLCache()
	body := dynbuf.New()
	body.Append([]byte("v1"))
	c.Insert("/p", body, 30*time.Millisecond)

	body2 := dynbuf.New()
	body2.Append([]byte("v2"))
	c.Insert("/p", body2, 30*time.Millisecond)

	got, ok := c.Fetch("/p")
	require.True(t, ok)
	require.Equal(t, "v2", string(got.Bytes()))
	require.Len(t, c.entries, 1)
}

func TestURLCacheClearCancelsTimers(t *testing.T) {
	c := NewURLCache()
	body := dynbuf.New()
	body.Append([]byte("v"))
	c.Insert("/p", body, 5*time.Millisecond)
	c.Clear()

	_, ok := c.Fetch("/p")
	require.False(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Fetch("/p")
	require.False(t, ok)
}

func TestModInfoCacheInvalidate(t *testing.T) {
	c := NewModInfoCache()
	c.Put(types.ModProfile{ID: 42, Name: "Test Mod"})

	p, ok := c.Get(42)
	require.True(t, ok)
	require.Equal(t, "Test Mod", p.Name)

	c.Invalidate(42)
	_, ok = c.Get(42)
	require.False(t, ok)
}

func TestSessionRateLimitWindow(t *testing.T) {
	s := NewSession()
	require.False(t, s.RateLimited())

	s.SetRateLimited(20 * time.Millisecond)
	require.True(t, s.RateLimited())

	require.Eventually(t, func() bool { return !s.RateLimited() }, time.Second, 5*time.Millisecond)
}

func TestSessionTokenExpiresOnObservation(t *testing.T) {
	s := NewSession()
	s.SetUser(7, types.OAuthToken{Status: types.OAuthValid, Expiry: time.Now().Add(-time.Second).Unix()}, types.UserProfile{ID: 7})

	tok := s.Token()
	require.Equal(t, types.OAuthInvalid, tok.Status)
}
