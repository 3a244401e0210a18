package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/cuemby/modio-go/pkg/cache"
	"github.com/cuemby/modio-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient(ServerConfig{GameID: 1, APIKey: "key", OverrideURL: srv.URL}, cache.NewURLCache(), cache.NewSession(), async.NewExecutor())
	return c, srv
}

func TestSendCachesSuccessfulGET(t *testing.T) {
	var hits int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	defer srv.Close()

	req := NewRequest(GET, "/v1/games/{game-id}/mods").WithPathParam("game-id", 1)

	resp1, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp1.StatusCode)

	resp2, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"ok":true}`), resp2.Body.Bytes())
	require.EqualValues(t, 1, atomic.LoadInt32(&hits), "second GET should be served from cache")
}

func TestSendDoesNotCachePOST(t *testing.T) {
	var hits int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})
	defer srv.Close()

	req := NewRequest(POST, "/v1/games/{game-id}/mods").WithPathParam("game-id", 1)
	_, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	_, err = c.Send(context.Background(), req)
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestSendClassifiesBadGatewayAsServerError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := c.Send(context.Background(), NewRequest(GET, "/x"))
	require.Error(t, err)
}

func TestSendParsesStructuredErrorEnvelope(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"error_ref":11050,"message":"forbidden"}}`))
	})
	defer srv.Close()

	resp, err := c.Send(context.Background(), NewRequest(GET, "/x"))
	require.Error(t, err)
	require.NotNil(t, resp)
	require.NotNil(t, resp.APIError)
	require.Equal(t, 11050, resp.APIError.ErrorRef)
}

func TestSendSuccessNoOpErrorRefReturnsNoError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"error_ref":15004,"message":"already subscribed"}}`))
	})
	defer srv.Close()

	resp, err := c.Send(context.Background(), NewRequest(GET, "/x"))
	require.NoError(t, err)
	require.NotNil(t, resp.APIError)
}

func TestSendMarksRateLimitedAndReturnsError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"error_ref":429,"message":"rate limited"}}`))
	})
	defer srv.Close()

	_, err := c.Send(context.Background(), NewRequest(GET, "/x"))
	require.Error(t, err)
	require.True(t, c.session.RateLimited())
}

func TestSendInvalidatesTokenOn401(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"error_ref":11004,"message":"invalid token"}}`))
	})
	defer srv.Close()

	c.session.SetUser(7, types.OAuthToken{Token: "abc", Status: types.OAuthValid}, types.UserProfile{ID: 7})

	_, err := c.Send(context.Background(), NewRequest(GET, "/x"))
	require.Error(t, err)
	require.Equal(t, types.OAuthInvalid, c.session.Token().Status)
}

func TestDownloadRefetchesPartialSideFileUnderRoundingUnit(t *testing.T) {
	// The 10-byte side file rounds down to 0 (resumeRoundingUnit is 1 MiB),
	// so Download truncates it and fetches the whole payload again.
	const payload = "the quick brown fox jumps over the lazy dog"
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(payload))
			return
		}
		var start int
		_, _ = fmt.Sscanf(rangeHeader, "bytes=%d-", &start)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(payload)-1, len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(payload[start:]))
	})
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "archive.zip")
	side := dest + ".download"
	require.NoError(t, os.WriteFile(side, []byte(payload[:10]), 0o644))

	err := c.Download(context.Background(), srv.URL, dest, nil)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, string(got))
}

func TestDownloadRejectsNonPartialStatus(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	dir := t.TempDir()
	err := c.Download(context.Background(), srv.URL, filepath.Join(dir, "f.zip"), nil)
	require.Error(t, err)
}

func TestDownloadCancellationLeavesSideFileInPlace(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			_, _ = w.Write([]byte("chunk"))
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(20 * time.Millisecond)
		}
	})
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "f.zip")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Download(ctx, srv.URL, dest, nil)
	require.Error(t, err)

	_, statErr := os.Stat(dest + ".download")
	require.NoError(t, statErr, "partial side file should survive a cancelled download")
}

func TestUploadSingleShotSendsMultipartForm(t *testing.T) {
	var gotContentType string
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "mod.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip bytes"), 0o644))

	_, err := c.UploadFile(context.Background(), 42, path, nil)
	require.NoError(t, err)
	require.Contains(t, gotContentType, "multipart/form-data")
}
