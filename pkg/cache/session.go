package cache

import (
	"sync"
	"time"

	"github.com/cuemby/modio-go/pkg/types"
)

// Session is the process-wide, user-scoped state that survives across
// individual operations: the active user's OAuth token, their profile, and
// the rate-limit flag the transport pipeline sets when the server pushes
// back. Every field is read under a single lock so callers can take a
// consistent point-in-time snapshot instead of tearing reads across
// several independently-locked fields.
type Session struct {
	mu sync.RWMutex

	userID  types.UserID
	token   types.OAuthToken
	profile types.UserProfile

	rateLimited     bool
	rateLimitedAt   time.Time
	rateLimitResetDelay time.Duration
}

// NewSession returns an empty, unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// Snapshot is a consistent, read-only copy of the session's fields for a
// caller that needs to inspect several of them together.
type Snapshot struct {
	UserID      types.UserID
	Token       types.OAuthToken
	Profile     types.UserProfile
	RateLimited bool
}

// Read returns a Snapshot of the session as of this call.
func (s *Session) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		UserID:      s.userID,
		Token:       s.token,
		Profile:     s.profile,
		RateLimited: s.rateLimited,
	}
}

// SetUser replaces the active user's identity, profile, and token in one
// atomic step. Callers are responsible for clearing user-scoped caches and
// storage before calling this when the new user differs from the previous
// one (see the user-data external interface).
func (s *Session) SetUser(userID types.UserID, token types.OAuthToken, profile types.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.token = token
	s.profile = profile
}

// Token returns the current OAuth token, downgrading it to the invalid
// state first if its expiry has passed.
func (s *Session) Token() types.OAuthToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token.ExpiredAsOf(time.Now()) {
		s.token.Status = types.OAuthInvalid
	}
	return s.token
}

// InvalidateToken downgrades the current token to the invalid state, as
// happens when a request observes a user-not-authenticated response.
func (s *Session) InvalidateToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token.Status = types.OAuthInvalid
}

// UserID returns the active user's ID.
func (s *Session) UserID() types.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SetRateLimited raises the rate-limit flag for d, the server-advised
// backoff window. A scheduler observing this flag should pause starting
// new transitional work until it clears.
func (s *Session) SetRateLimited(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited = true
	s.rateLimitedAt = time.Now()
	s.rateLimitResetDelay = d
}

// RateLimited reports whether the session is within its backoff window,
// clearing the flag implicitly once the window has elapsed (a subsequent
// successful request also clears it explicitly via ClearRateLimit).
func (s *Session) RateLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rateLimited {
		return false
	}
	if time.Since(s.rateLimitedAt) >= s.rateLimitResetDelay {
		s.rateLimited = false
		return false
	}
	return true
}

// ClearRateLimit drops the rate-limit flag, as happens on the first
// successful request after a rate-limited one.
func (s *Session) ClearRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimited = false
}
