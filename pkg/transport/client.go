package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/cuemby/modio-go/pkg/cache"
	"github.com/cuemby/modio-go/pkg/dynbuf"
	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/metrics"
	"github.com/cuemby/modio-go/pkg/security"
)

// urlCacheMetricName labels URLCache hit/miss counters in pkg/metrics.
const urlCacheMetricName = "url"

// chunkSize bounds every streaming body read, matching the dynamic
// buffer's own chunk size so response bytes gather into it without an
// extra copy per read.
const chunkSize = 64 * 1024

// Environment selects which mod.io host a Client talks to.
type Environment int

const (
	Live Environment = iota
	Test
)

// ServerConfig derives the API host and identifies the calling game/app to
// every request a Client sends.
type ServerConfig struct {
	GameID      int64
	APIKey      string
	Environment Environment
	// OverrideURL, if set, replaces the derived g-<gameId>.modapi.io /
	// g-<gameId>.test.mod.io host entirely (used by test harnesses).
	OverrideURL string

	Platform       string
	Portal         string
	UserAgent      string
	AcceptLanguage string
}

// BaseURL returns the scheme+host requests are sent against.
func (s ServerConfig) BaseURL() string {
	if s.OverrideURL != "" {
		return s.OverrideURL
	}
	if s.Environment == Test {
		return fmt.Sprintf("https://g-%d.test.mod.io", s.GameID)
	}
	return fmt.Sprintf("https://g-%d.modapi.io", s.GameID)
}

// Response is the outcome of a completed send: a status code and a
// gathered body. Send returns an error for transport-level failures, a
// 502, an error body it cannot parse, and a structured API error whose ref
// is not a success no-op. For a success no-op ref it returns the Response,
// with APIError set, and a nil error.
type Response struct {
	StatusCode int
	Body       *dynbuf.Buffer
	APIError   *APIErrorBody
}

// APIErrorBody is mod.io's structured JSON error envelope.
type APIErrorBody struct {
	Code    int                 `json:"code"`
	ErrorRef int                `json:"error_ref"`
	Message string              `json:"message"`
	Errors  map[string]string   `json:"errors,omitempty"`
}

// apiErrorEnvelope matches the server's {"error": {...}} wrapping.
type apiErrorEnvelope struct {
	Error APIErrorBody `json:"error"`
}

// rateLimitedErrorRef is the server's error_ref for a rate-limited request.
const rateLimitedErrorRef = 429

// successNoOpErrorRefs are mod.io's documented error_ref codes for a call
// that changed nothing because the desired state already held:
// resubscribing to an already-subscribed mod, unsubscribing from one never
// subscribed to, and resubmitting an identical collection rating.
// error_ref 0 never appears on a real error body — classify only reaches
// this check on a non-2xx response — so it was never a working sentinel.
// The caller layer treats any of these identically to a 2xx response.
var successNoOpErrorRefs = map[int]bool{
	15004: true, // already subscribed to this mod
	15005: true, // not subscribed to this mod, nothing to unsubscribe
	15066: true, // rating already submitted with this verdict
}

// Client drives requests through a single-slot ticket queue (so sends to
// one game's API never race each other at the transport layer), serves
// cached GETs, and enforces the redirect-host allowlist and hop budget on
// every send.
type Client struct {
	http      *http.Client
	server    ServerConfig
	queue     *async.Queue
	cache     *cache.URLCache
	session   *cache.Session
	allowlist *security.HostAllowlist
	exec      *async.Executor
}

// NewClient builds a Client for server, sharing urlCache, session, and the
// async executor download/upload's file I/O runs against with the rest of
// the SDK.
func NewClient(server ServerConfig, urlCache *cache.URLCache, session *cache.Session, exec *async.Executor) *Client {
	allowlist := security.NewHostAllowlist(hostOf(server.BaseURL()))
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     security.ClientTLSConfig(),
				TLSHandshakeTimeout: 10 * time.Second,
				ForceAttemptHTTP2:   true,
			},
			CheckRedirect: security.CheckRedirect(allowlist),
		},
		server:    server,
		queue:     async.NewQueue(),
		cache:     urlCache,
		session:   session,
		exec:      exec,
		allowlist: allowlist,
	}
}

func hostOf(rawURL string) string {
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rawURL = rawURL[i+3:]
	}
	if i := strings.IndexByte(rawURL, '/'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}

// AllowRedirectHost adds an additional host (e.g. a download CDN) the
// client's redirect policy is permitted to follow to.
func (c *Client) AllowRedirectHost(host string) {
	c.allowlist.Add(host)
}

// Send performs req against the server, honoring the ticket queue,
// consulting the response cache on cacheable GETs, and classifying the
// response per the API's status/error-body conventions.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	ticket := c.queue.GetTicket()
	if err := ticket.WaitForTurn(ctx); err != nil {
		return nil, errcode.Cancelled.With("request queue wait failed: %v", err)
	}
	defer ticket.Release()

	formattedPath := req.FormattedPath()
	cacheable := req.verb == GET
	if cacheable {
		if cached, ok := c.cache.Fetch(formattedPath); ok {
			metrics.CacheResultsTotal.WithLabelValues(urlCacheMetricName, "hit").Inc()
			return &Response{StatusCode: http.StatusOK, Body: cached}, nil
		}
		metrics.CacheResultsTotal.WithLabelValues(urlCacheMetricName, "miss").Inc()
	}

	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errcode.HttpConnectionFailed.With("%v", err)
	}
	defer httpResp.Body.Close()

	body := dynbuf.New()
	buf := make([]byte, chunkSize)
	for {
		n, rerr := httpResp.Body.Read(buf)
		if n > 0 {
			body.Append(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, errcode.HttpConnectionFailed.With("reading response body: %v", rerr)
		}
	}

	return c.classify(httpResp.StatusCode, formattedPath, body, cacheable)
}

func (c *Client) buildHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.server.BaseURL() + req.FormattedPath()

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.verb), u, bodyReader)
	if err != nil {
		return nil, errcode.BadParameter.With("unable to build request: %v", err)
	}

	httpReq.Header.Set("x-modio-platform", c.server.Platform)
	httpReq.Header.Set("x-modio-portal", c.server.Portal)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", c.server.UserAgent)
	httpReq.Header.Set("Accept-Language", c.server.AcceptLanguage)

	if tok := c.session.Token(); tok.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tok.Token)
	}

	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	q := httpReq.URL.Query()
	q.Set("api_key", c.server.APIKey)
	for k, values := range req.query {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	httpReq.URL.RawQuery = q.Encode()

	return httpReq, nil
}

// classify applies the status/error-body handling: 502 becomes
// errcode.HttpServerError, a parseable structured error body drives rate-limit
// and no-op detection, and a successful GET is cached.
func (c *Client) classify(statusCode int, formattedPath string, body *dynbuf.Buffer, cacheable bool) (*Response, error) {
	metrics.HTTPRequestsTotal.WithLabelValues(metrics.StatusClass(statusCode)).Inc()

	if statusCode >= 200 && statusCode <= 204 {
		if cacheable {
			c.cache.Insert(formattedPath, body, cache.DefaultExpiry)
		}
		c.session.ClearRateLimit()
		return &Response{StatusCode: statusCode, Body: body}, nil
	}

	if statusCode == http.StatusBadGateway {
		return nil, errcode.HttpServerError.With("mod.io servers overloaded, please try again later")
	}

	apiErr, ok := parseAPIError(body)
	if !ok {
		return nil, errcode.ApiInvalidResponse.With("unparseable error response, status %d", statusCode)
	}

	if apiErr.ErrorRef == rateLimitedErrorRef {
		c.session.SetRateLimited(time.Minute)
	}

	resp := &Response{StatusCode: statusCode, Body: body, APIError: &apiErr}
	if successNoOpErrorRefs[apiErr.ErrorRef] {
		return resp, nil
	}

	if statusCode == http.StatusUnauthorized {
		c.session.InvalidateToken()
		return resp, errcode.UserNotAuthenticated.With("%s", apiErr.Message)
	}

	return resp, errcode.ApiErrorBody.With("%s (ref %d)", apiErr.Message, apiErr.ErrorRef)
}

func parseAPIError(body *dynbuf.Buffer) (APIErrorBody, bool) {
	raw := body.Bytes()
	var wrapped apiErrorEnvelope
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error, true
	}
	var bare APIErrorBody
	if err := json.Unmarshal(raw, &bare); err == nil && bare.Message != "" {
		return bare, true
	}
	return APIErrorBody{}, false
}
