/*
Package types defines the data structures shared across the SDK: mod
identifiers and profiles, the per-mod collection entry state machine's
fields, subscription deltas, the deferred-unsubscribe ledger, and the
shapes persisted to user metadata storage.

# Core Types

  - ModID, UserID: opaque identifiers.
  - ModProfile: an immutable snapshot of server-side mod metadata.
  - Entry: one mod collection record — current/rollback state, profile,
    local subscriber set, on-disk path and size, session-local retry
    bookkeeping, and the persisted no-retry quarantine reason.
  - PersistedSnapshot: the collapsed, serialization-safe form of an Entry.
  - DeferredUnsubscribeLedger, SubscriptionList, Delta: subscription
    reconciliation bookkeeping.

# Thread Safety

Entry is safe for concurrent use: state and rollback state are atomics,
the retry counters are atomics, and the profile/subscriber/path fields are
guarded by an internal mutex. Callers outside pkg/collection should treat
Entry as read-mostly; mutation is the scheduler's job.

# See Also

  - pkg/collection for the transaction wrapper and reconciliation-facing API
  - pkg/storage for the persisted JSON document this package's types serialize into
*/
package types
