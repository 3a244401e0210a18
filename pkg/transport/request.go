// Package transport is the HTTP pipeline: an immutable request builder,
// a ticket-queued client that drives each request through cache lookup,
// TLS, redirect-checked send, and structured error-body parsing, plus the
// download and chunked/multipart upload operations layered on top of it.
package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Verb is the HTTP method a Request will be sent with.
type Verb string

const (
	GET    Verb = "GET"
	POST   Verb = "POST"
	PUT    Verb = "PUT"
	DELETE Verb = "DELETE"
)

// Request is an immutable description of one HTTP call. Every With* method
// returns a modified copy, so a base request (e.g. "GET /v1/games/{game-id}
// /mods/{mod-id}") can be built once and specialized per call without the
// calls stepping on each other.
type Request struct {
	verb    Verb
	path    string
	query   url.Values
	headers map[string]string
	params  map[string]string

	body []byte
}

// NewRequest starts building a request for verb against path, which may
// contain {game-id}, {mod-id}, {user-id}, and {collection-id} placeholders
// resolved by FormattedPath.
func NewRequest(verb Verb, path string) Request {
	return Request{
		verb:    verb,
		path:    path,
		query:   url.Values{},
		headers: map[string]string{},
		params:  map[string]string{},
	}
}

func (r Request) clone() Request {
	c := Request{
		verb:    r.verb,
		path:    r.path,
		query:   url.Values{},
		headers: make(map[string]string, len(r.headers)),
		params:  make(map[string]string, len(r.params)),
		body:    r.body,
	}
	for k, v := range r.query {
		c.query[k] = append([]string(nil), v...)
	}
	for k, v := range r.headers {
		c.headers[k] = v
	}
	for k, v := range r.params {
		c.params[k] = v
	}
	return c
}

// WithQuery adds a query-string parameter.
func (r Request) WithQuery(key, value string) Request {
	c := r.clone()
	c.query.Set(key, value)
	return c
}

// WithHeader sets a request header, overriding any default of the same
// name.
func (r Request) WithHeader(key, value string) Request {
	c := r.clone()
	c.headers[key] = value
	return c
}

// WithPathParam binds a {game-id}/{mod-id}/{user-id}/{collection-id} style
// placeholder to a concrete value.
func (r Request) WithPathParam(name string, value int64) Request {
	c := r.clone()
	c.params[name] = strconv.FormatInt(value, 10)
	return c
}

// WithBody attaches a fixed in-memory body, such as a JSON-encoded payload.
func (r Request) WithBody(body []byte) Request {
	c := r.clone()
	c.body = body
	return c
}

// WithRange sets the Range header for a partial GET from startInclusive to
// the end. Client.Download sets its Range header on its own http.Request
// and does not call this.
func (r Request) WithRange(startInclusive int64) Request {
	return r.WithHeader("Range", fmt.Sprintf("bytes=%d-", startInclusive))
}

// Verb returns the request's HTTP method.
func (r Request) Verb() Verb { return r.verb }

// FormattedPath resolves every {placeholder} in the request's path and
// appends its query string, producing the resource path cache entries are
// keyed on.
func (r Request) FormattedPath() string {
	path := r.path
	for name, value := range r.params {
		path = strings.ReplaceAll(path, "{"+name+"}", value)
	}
	if len(r.query) > 0 {
		return path + "?" + r.query.Encode()
	}
	return path
}
