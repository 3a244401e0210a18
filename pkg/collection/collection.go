// Package collection holds the in-memory mod collection: one types.Entry
// per mod the current user is tracking, plus the transaction wrapper and
// failure classification the reconciliation scheduler drives entries
// through.
package collection

import (
	"sync"

	"github.com/cuemby/modio-go/pkg/errcode"
	"github.com/cuemby/modio-go/pkg/log"
	"github.com/cuemby/modio-go/pkg/types"
)

// Collection is the set of mods the active user is tracking, keyed by
// ModID. It is safe for concurrent use, though in practice only the
// executor goroutine ever mutates it.
type Collection struct {
	mu      sync.RWMutex
	entries map[types.ModID]*types.Entry
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{entries: make(map[types.ModID]*types.Entry)}
}

// Get returns the entry for id, if tracked.
func (c *Collection) Get(id types.ModID) (*types.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Put inserts or replaces the entry for its own ID.
func (c *Collection) Put(e *types.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.ID] = e
}

// Remove drops an entry from the collection entirely, called once its
// uninstall has actually completed on disk.
func (c *Collection) Remove(id types.ModID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// All returns every tracked entry. The returned slice is a snapshot; the
// scheduler re-sorts and filters its own copy each tick.
func (c *Collection) All() []*types.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*types.Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// Len reports how many mods are currently tracked.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Transaction is a scope-guarded state change on a single entry: Begin
// snapshots State into RollbackState, and Rollback (intended to be
// deferred at every call site) restores it unless Commit already ran.
// Calling Rollback after Commit, or more than once, is a no-op — the
// underlying Entry methods are themselves idempotent that way.
type Transaction struct {
	entry   *types.Entry
	started bool
}

// Begin starts a transaction on e. If e already has one active, it logs a
// warning and returns a Transaction whose Commit/Rollback are no-ops,
// matching the "no nesting" rule: a second concurrent transition attempt
// on the same entry must not stomp the first one's rollback snapshot.
func Begin(e *types.Entry) *Transaction {
	if !e.BeginTransaction() {
		log.WithComponent("collection").Warn().
			Int64("mod_id", int64(e.ID)).
			Msg("transaction already active on entry, ignoring nested begin")
		return &Transaction{entry: e, started: false}
	}
	return &Transaction{entry: e, started: true}
}

// Commit keeps whatever state the transaction's work left behind.
func (t *Transaction) Commit() {
	if !t.started {
		return
	}
	t.entry.CommitTransaction()
}

// Rollback restores the entry's state to what it was at Begin. Safe to
// call unconditionally via defer; idempotent after Commit.
func (t *Transaction) Rollback() {
	if !t.started {
		return
	}
	t.entry.RollbackTransaction()
}

// Outcome classifies how a failed operation should affect an entry's
// retry bookkeeping, per errcode's Class() families.
type Outcome int

const (
	// OutcomeRetry leaves the entry eligible for another attempt this
	// session (errcode.ClassRetryable).
	OutcomeRetry Outcome = iota
	// OutcomeQuarantine permanently disables retries for this entry until
	// manually cleared (errcode.ClassUnrecoverable).
	OutcomeQuarantine
	// OutcomeDeferDelete moves the failure into the deferred-unsubscribe
	// ledger instead of the regular retry path (errcode.ClassDeleteDeferred).
	OutcomeDeferDelete
	// OutcomeIgnore is for failures that carry no retry implication at all
	// (errcode.ClassOther, e.g. a user-initiated cancellation).
	OutcomeIgnore
)

// Classify maps an error returned from an install/update/uninstall/upload
// attempt to the retry action the scheduler should take. Non-Code errors
// (a bare context or I/O error that never passed through errcode) are
// treated as retryable, since the SDK has no way to tell apart "transient"
// from "not transient" without the classification errcode attaches.
func Classify(err error) Outcome {
	code, ok := err.(errcode.Code)
	if !ok {
		return OutcomeRetry
	}
	switch code.Class() {
	case errcode.ClassUnrecoverable:
		return OutcomeQuarantine
	case errcode.ClassDeleteDeferred:
		return OutcomeDeferDelete
	case errcode.ClassOther:
		return OutcomeIgnore
	default:
		return OutcomeRetry
	}
}

// ApplyFailure records the outcome of a failed attempt on e: a retryable
// failure decrements the session budget, an unrecoverable one quarantines
// the entry permanently with the errcode's name and family, and the other
// two outcomes leave the retry bookkeeping untouched (the scheduler
// handles OutcomeDeferDelete by routing the mod through the
// deferred-unsubscribe ledger instead).
func ApplyFailure(e *types.Entry, err error) Outcome {
	outcome := Classify(err)
	switch outcome {
	case OutcomeRetry:
		e.DecrementRetries()
	case OutcomeQuarantine:
		code, category := err.Error(), ""
		if c, ok := err.(errcode.Code); ok {
			code, category = c.Name, string(c.Family)
		}
		e.SetPermanentNoRetryReason(code, category)
	}
	return outcome
}
