// Package types holds the plain data structures shared across the SDK:
// mod identifiers and profiles, collection entries, session data, and the
// shapes persisted to user metadata storage.
package types

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// ModID is an opaque mod identifier. ModID(0) is reserved as "invalid".
type ModID int64

// Valid reports whether the identifier refers to a real mod.
func (m ModID) Valid() bool {
	return m != 0
}

// UserID is an opaque local-user identifier (one device may host more than
// one authenticated user across its lifetime).
type UserID int64

// State is a mod collection entry's current lifecycle state.
type State string

const (
	StateInstallPending   State = "install_pending"
	StateInstalled        State = "installed"
	StateUpdatePending    State = "update_pending"
	StateDownloading      State = "downloading"
	StateExtracting       State = "extracting"
	StateUninstallPending State = "uninstall_pending"
)

// RequiresWork reports whether the scheduler should act on an entry in this
// state.
func (s State) RequiresWork() bool {
	switch s {
	case StateInstallPending, StateUpdatePending, StateUninstallPending:
		return true
	default:
		return false
	}
}

// Maturity is a bitflag set of content maturity options a mod may declare.
type Maturity uint8

const (
	MaturityNone     Maturity = 0
	MaturityAlcohol  Maturity = 1 << 0
	MaturityDrugs    Maturity = 1 << 1
	MaturityViolence Maturity = 1 << 2
	MaturityExplicit Maturity = 1 << 3
)

// Visibility is a mod's listing visibility.
type Visibility uint8

const (
	VisibilityHidden Visibility = 0
	VisibilityPublic Visibility = 1
)

// AvatarURLs mirrors the persisted "Avatar" document shape.
type AvatarURLs struct {
	Filename     string `json:"filename"`
	Original     string `json:"original"`
	Thumb50x50   string `json:"thumb_50x50"`
	Thumb100x100 string `json:"thumb_100x100"`
}

// UserProfile is the persisted "Profile" document shape.
type UserProfile struct {
	ID       UserID     `json:"id"`
	Username string     `json:"username"`
	Avatar   AvatarURLs `json:"avatar"`
}

// SubmitterRef references the user who submitted a mod.
type SubmitterRef struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

// ModProfile is an immutable snapshot of server-side mod metadata. A new
// ModProfile with a changed MetadataID signals an available update.
type ModProfile struct {
	ID            ModID
	GameID        int64
	Name          string
	Summary       string
	Description   string
	MetadataID    string // changes iff the authoritative file changes
	DownloadURL   string // current file release's binary download URL
	SizeBytes     int64
	Visibility    Visibility
	Maturity      Maturity
	Tags          []string
	GalleryImages []string
	Logo          string
	SubmittedBy   SubmitterRef
}

// ProgressState is the phase a mod progress tracker is in.
type ProgressState string

const (
	ProgressInitializing ProgressState = "initializing"
	ProgressDownloading  ProgressState = "downloading"
	ProgressExtracting   ProgressState = "extracting"
	ProgressCompressing  ProgressState = "compressing"
	ProgressUploading    ProgressState = "uploading"
)

// OAuthStatus is the validity of a persisted OAuth token.
type OAuthStatus int

const (
	OAuthValid   OAuthStatus = 0
	OAuthExpired OAuthStatus = 1
	OAuthInvalid OAuthStatus = 2
)

// OAuthToken is the persisted "OAuth" document shape.
type OAuthToken struct {
	Expiry int64       `json:"expiry"`
	Status OAuthStatus `json:"status"`
	Token  string      `json:"token,omitempty"`
}

// ExpiredAsOf reports whether the token should be treated as invalid given
// now: its status is OAuthInvalid or its expiry has passed. It does not
// change the token's status; Session.Token does that downgrade.
func (t *OAuthToken) ExpiredAsOf(now time.Time) bool {
	if t.Status == OAuthInvalid {
		return true
	}
	return t.Expiry > 0 && now.Unix() >= t.Expiry
}

// Entry is one mod collection record. Atomics guard the state, rollback
// state and retry fields; mu guards the profile, subscriber set, path and
// size; transactionMu guards the active-transaction flag.
type Entry struct {
	ID ModID

	state         atomic.Value // State
	rollbackState atomic.Value // *State, nil when no transaction is active

	mu                   sync.Mutex
	profile              ModProfile
	localUserSubscribers map[UserID]struct{}
	pathOnDisk           string
	sizeOnDisk           int64
	hasSizeOnDisk        bool

	retriesRemaining         atomic.Int32
	shouldNotRetry           atomic.Bool
	permanentNoRetryReason   atomic.Value // string, nil-backed when unset
	permanentNoRetryCategory atomic.Value // string, nil-backed when unset

	transactionMu sync.Mutex
	inTransaction bool
}

// DefaultRetries is the per-entry retry budget reset on reaching Installed.
const DefaultRetries = 3

// NewEntry constructs a fresh entry in StateInstallPending, as created when
// a mod first appears in a subscription delta.
func NewEntry(profile ModProfile, pathOnDisk string) *Entry {
	e := &Entry{
		ID:                   profile.ID,
		profile:              profile,
		pathOnDisk:           pathOnDisk,
		localUserSubscribers: make(map[UserID]struct{}),
	}
	e.state.Store(StateInstallPending)
	e.rollbackState.Store((*State)(nil))
	e.retriesRemaining.Store(DefaultRetries)
	e.permanentNoRetryReason.Store("")
	e.permanentNoRetryCategory.Store("")
	return e
}

// State returns the entry's current lifecycle state.
func (e *Entry) State() State {
	return e.state.Load().(State)
}

// SetState sets the entry's current lifecycle state directly. Intended for
// use only while a transaction is active (see BeginTransaction); the
// scheduler never calls it outside that bracket.
func (e *Entry) SetState(s State) {
	e.state.Store(s)
}

// BeginTransaction snapshots the current state into RollbackState and marks
// the entry as having an active transaction. Returns false (and logs
// nothing itself — the caller does) if a transaction is already active,
// since transactions must not nest for a single entry.
func (e *Entry) BeginTransaction() bool {
	e.transactionMu.Lock()
	defer e.transactionMu.Unlock()
	if e.inTransaction {
		return false
	}
	e.inTransaction = true
	snapshot := e.State()
	e.rollbackState.Store(&snapshot)
	return true
}

// CommitTransaction clears RollbackState, keeping whatever state the
// transaction's work left behind.
func (e *Entry) CommitTransaction() {
	e.transactionMu.Lock()
	defer e.transactionMu.Unlock()
	e.rollbackState.Store((*State)(nil))
	e.inTransaction = false
}

// RollbackTransaction restores State to the snapshot taken at
// BeginTransaction and clears RollbackState. Idempotent: calling it again
// after Commit (or after a prior Rollback) is a no-op, matching the
// scope-guard's "only run on exit paths that didn't commit" contract.
func (e *Entry) RollbackTransaction() {
	e.transactionMu.Lock()
	defer e.transactionMu.Unlock()
	if !e.inTransaction {
		return
	}
	if rb, ok := e.RollbackState(); ok {
		e.state.Store(rb)
	}
	e.rollbackState.Store((*State)(nil))
	e.inTransaction = false
}

// RollbackState returns the snapshotted state captured when the active
// transaction began, or false if no transaction is active.
func (e *Entry) RollbackState() (State, bool) {
	v := e.rollbackState.Load()
	p, ok := v.(*State)
	if !ok || p == nil {
		return "", false
	}
	return *p, true
}

// Profile returns the most recently known profile.
func (e *Entry) Profile() ModProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// UpdateProfile replaces the known profile, e.g. after detecting a new
// MetadataID.
func (e *Entry) UpdateProfile(p ModProfile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile = p
}

// PathOnDisk returns the mod's install directory.
func (e *Entry) PathOnDisk() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pathOnDisk
}

// SizeOnDisk returns the installed size and whether it is currently
// meaningful (only populated once State() == StateInstalled, per invariant).
func (e *Entry) SizeOnDisk() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State() != StateInstalled {
		return 0, false
	}
	return e.sizeOnDisk, e.hasSizeOnDisk
}

// SetSizeOnDisk records the installed size after a successful install.
func (e *Entry) SetSizeOnDisk(n int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sizeOnDisk = n
	e.hasSizeOnDisk = true
}

// AddLocalUserSubscription records that a user subscribes to this mod on
// this installation.
func (e *Entry) AddLocalUserSubscription(u UserID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localUserSubscribers[u] = struct{}{}
}

// RemoveLocalUserSubscription removes a user's local subscription record.
// Returns true if the subscriber set is now empty.
func (e *Entry) RemoveLocalUserSubscription(u UserID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.localUserSubscribers, u)
	return len(e.localUserSubscribers) == 0
}

// SubscriberCount returns how many local users currently subscribe to this
// mod (the persisted "SubscriptionCount" field).
func (e *Entry) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.localUserSubscribers)
}

// RetriesRemaining returns the session-local retry budget. Never persisted
// (see SPEC_FULL.md §9).
func (e *Entry) RetriesRemaining() int32 {
	return e.retriesRemaining.Load()
}

// ShouldNotRetryThisSession reports the volatile no-retry flag, cleared on
// process restart.
func (e *Entry) ShouldNotRetryThisSession() bool {
	return e.shouldNotRetry.Load()
}

// ClearShouldNotRetry resets the volatile no-retry flag, e.g. on manual
// intervention.
func (e *Entry) ClearShouldNotRetry() {
	e.shouldNotRetry.Store(false)
}

// PermanentNoRetryReason returns the persisted quarantine reason, if any.
func (e *Entry) PermanentNoRetryReason() (string, bool) {
	v := e.permanentNoRetryReason.Load()
	s, _ := v.(string)
	if s == "" {
		return "", false
	}
	return s, true
}

// SetPermanentNoRetryReason quarantines the entry across sessions with the
// errcode name (e.g. "file_not_found") and its family (e.g. "filesystem"),
// mirroring the original SDK's split of a quarantine into a code and a
// category rather than one flattened message.
func (e *Entry) SetPermanentNoRetryReason(reason, category string) {
	e.permanentNoRetryReason.Store(reason)
	e.permanentNoRetryCategory.Store(category)
}

// PermanentNoRetryCategory returns the persisted quarantine's errcode
// family, if any.
func (e *Entry) PermanentNoRetryCategory() (string, bool) {
	v := e.permanentNoRetryCategory.Load()
	s, _ := v.(string)
	if s == "" {
		return "", false
	}
	return s, true
}

// ClearPermanentNoRetryReason un-quarantines the entry (manual clear).
func (e *Entry) ClearPermanentNoRetryReason() {
	e.permanentNoRetryReason.Store("")
	e.permanentNoRetryCategory.Store("")
}

// MayRetry reports whether the scheduler may still act on this entry this
// session.
func (e *Entry) MayRetry() bool {
	if _, quarantined := e.PermanentNoRetryReason(); quarantined {
		return false
	}
	return !e.ShouldNotRetryThisSession()
}

// RetriedThisSession reports whether the retry counter has ever been
// decremented this session.
func (e *Entry) RetriedThisSession() bool {
	return e.retriesRemaining.Load() < DefaultRetries
}

// DecrementRetries decrements the session retry budget, setting the
// volatile no-retry flag when it reaches zero. Returns the remaining count.
func (e *Entry) DecrementRetries() int32 {
	remaining := e.retriesRemaining.Add(-1)
	if remaining <= 0 {
		e.shouldNotRetry.Store(true)
	}
	return remaining
}

// ResetRetries restores the full retry budget, called on reaching Installed.
func (e *Entry) ResetRetries() {
	e.retriesRemaining.Store(DefaultRetries)
}

// PersistedSnapshot is the shape written to the "Mods" array in the user
// metadata document (invariant 4: transitional states collapse before
// serialization).
type PersistedSnapshot struct {
	ID                 ModID      `json:"ID"`
	Profile            ModProfile `json:"Profile"`
	SubscriptionCount  int        `json:"SubscriptionCount"`
	State              State      `json:"State"`
	SizeOnDisk         int64      `json:"SizeOnDisk"`
	PathOnDisk         string     `json:"PathOnDisk"`
	NeverRetryCode     string     `json:"NeverRetryCode,omitempty"`
	NeverRetryCategory string     `json:"NeverRetryCategory,omitempty"`
}

// Snapshot produces the persisted form of this entry, collapsing
// transitional states per invariant 4.
func (e *Entry) Snapshot() PersistedSnapshot {
	st := e.State()
	switch st {
	case StateDownloading, StateExtracting:
		if rb, ok := e.RollbackState(); ok {
			st = rb
		} else {
			st = StateInstallPending
		}
	}
	e.mu.Lock()
	size, _ := e.sizeOnDisk, e.hasSizeOnDisk
	e.mu.Unlock()
	reason, _ := e.PermanentNoRetryReason()
	category, _ := e.PermanentNoRetryCategory()
	return PersistedSnapshot{
		ID:                 e.ID,
		Profile:            e.Profile(),
		SubscriptionCount:  e.SubscriberCount(),
		State:              st,
		SizeOnDisk:         size,
		PathOnDisk:         e.PathOnDisk(),
		NeverRetryCode:     reason,
		NeverRetryCategory: category,
	}
}

// RestoreFromSnapshot reconstructs an entry from its persisted form.
// Session-local fields (the retry budget and the ShouldNotRetryThisSession
// flag) are not persisted and start fresh.
func RestoreFromSnapshot(s PersistedSnapshot) *Entry {
	e := &Entry{
		ID:                   s.ID,
		profile:              s.Profile,
		pathOnDisk:           s.PathOnDisk,
		sizeOnDisk:           s.SizeOnDisk,
		hasSizeOnDisk:        s.State == StateInstalled,
		localUserSubscribers: make(map[UserID]struct{}),
	}
	e.state.Store(s.State)
	e.rollbackState.Store((*State)(nil))
	e.retriesRemaining.Store(DefaultRetries)
	e.permanentNoRetryReason.Store(s.NeverRetryCode)
	e.permanentNoRetryCategory.Store(s.NeverRetryCategory)
	return e
}

// Equal reports whether two entries are equivalent for round-trip testing,
// explicitly ignoring the session-transient fields (RetriesRemaining,
// ShouldNotRetryThisSession) per the original SDK's equality semantics.
func (e *Entry) Equal(other *Entry) bool {
	if e.ID != other.ID {
		return false
	}
	a, b := e.Snapshot(), other.Snapshot()
	return reflect.DeepEqual(a, b)
}

// DeferredUnsubscribeLedger is the set of mod identifiers whose server-side
// unsubscribe call failed locally and must be retried.
type DeferredUnsubscribeLedger struct {
	mu  sync.Mutex
	ids map[ModID]struct{}
}

// NewDeferredUnsubscribeLedger returns an empty ledger.
func NewDeferredUnsubscribeLedger() *DeferredUnsubscribeLedger {
	return &DeferredUnsubscribeLedger{ids: make(map[ModID]struct{})}
}

// Add records a mod whose unsubscribe must be retried.
func (l *DeferredUnsubscribeLedger) Add(id ModID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids[id] = struct{}{}
}

// Remove clears a mod from the ledger after its unsubscribe succeeds.
func (l *DeferredUnsubscribeLedger) Remove(id ModID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ids, id)
}

// Snapshot returns the current ledger contents for persistence or
// iteration.
func (l *DeferredUnsubscribeLedger) Snapshot() []ModID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ModID, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	return out
}

// Load replaces the ledger contents, used when restoring from persisted
// metadata.
func (l *DeferredUnsubscribeLedger) Load(ids []ModID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = make(map[ModID]struct{}, len(ids))
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
}

// SubscriptionList is a user's current server-side subscription set, used
// to derive add/remove delta sets against a previous snapshot.
type SubscriptionList map[ModID]struct{}

// Delta describes the add/remove change set between two subscription
// snapshots.
type Delta struct {
	Added   []ModID
	Removed []ModID
}

// Diff computes the add/remove delta from prev to next.
func Diff(prev, next SubscriptionList) Delta {
	var d Delta
	for id := range next {
		if _, ok := prev[id]; !ok {
			d.Added = append(d.Added, id)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	return d
}
