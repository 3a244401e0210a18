// Package progress tracks in-flight install/update/upload byte counters
// and the ring-buffer event log the host drains each pump, mirroring the
// teacher's pkg/events broker shape but generalized to a drained buffer
// instead of a subscribed channel (nothing in this SDK runs a dedicated
// consumer goroutine the way a cluster event subscriber does).
package progress

import (
	"sync"
	"sync/atomic"
	"weak"

	"github.com/cuemby/modio-go/pkg/types"
)

// Info is one in-flight operation's progress: the state it's currently in
// and the current/total byte counters for that state. The operation
// driving it holds the only strong reference; everything else (a UI
// layer, a caller polling status) holds a weak.Pointer so that once the
// caller stops referencing it, Info is eligible for collection without
// the operation needing to be told to stop explicitly — though in
// practice the operation checks Cancelled() itself each chunk, which is
// the cooperative half of that same signal.
type Info struct {
	ModID types.ModID

	state   atomic.Value // types.ProgressState
	current atomic.Int64
	total   atomic.Int64

	cancelled atomic.Bool
}

// NewInfo starts tracking a fresh operation in ProgressInitializing.
func NewInfo(modID types.ModID) *Info {
	i := &Info{ModID: modID}
	i.state.Store(types.ProgressInitializing)
	return i
}

// SetState switches to a new phase, resetting the current counter (total
// is set separately once it's known, e.g. after the response headers
// report Content-Length).
func (i *Info) SetState(s types.ProgressState) {
	i.state.Store(s)
	i.current.Store(0)
}

// State returns the current phase.
func (i *Info) State() types.ProgressState {
	return i.state.Load().(types.ProgressState)
}

// SetTotal records the expected byte count for the current phase.
func (i *Info) SetTotal(total int64) {
	i.total.Store(total)
}

// Update records a new current/total pair, as called from a chunked
// read/write loop's per-chunk callback.
func (i *Info) Update(current, total int64) {
	i.current.Store(current)
	i.total.Store(total)
}

// Current and Total return the byte counters for the active phase.
func (i *Info) Current() int64 { return i.current.Load() }
func (i *Info) Total() int64   { return i.total.Load() }

// Cancel marks the operation cancelled. Called by the host when it
// drops its reference deliberately (e.g. an explicit "cancel this
// install" action) rather than just letting the weak.Pointer lapse.
func (i *Info) Cancel() {
	i.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called. Expiry of the weak
// reference an operation tracks this Info through is detected by
// Tracker.Upgrade, not here.
func (i *Info) Cancelled() bool {
	return i.cancelled.Load()
}

// Tracker hands out a weak reference to an Info so the owning operation
// can detect "nobody cares about this anymore, including the host" as
// distinct from an explicit Cancel call, matching the original's
// weak_ptr-expiry-means-cancelled idiom.
type Tracker struct {
	weak weak.Pointer[Info]
}

// NewTracker wraps info, retaining one weak reference to it.
func NewTracker(info *Info) *Tracker {
	return &Tracker{weak: weak.Make(info)}
}

// Upgrade reports whether the tracked Info is still reachable and not
// explicitly cancelled. A caller (the operation's per-chunk loop) should
// treat a false return identically regardless of which condition caused
// it: abort with the operation's own cancellation error.
func (t *Tracker) Upgrade() (*Info, bool) {
	if v := t.weak.Value(); v != nil {
		if v.Cancelled() {
			return v, false
		}
		return v, true
	}
	return nil, false
}

// Event is one entry in the user-visible event log: a mod ID, the
// lifecycle event that occurred, and the terminal status code (zero for
// a "begin_*" event, which has no outcome yet).
type Event struct {
	ModID     types.ModID
	Type      EventType
	StatusCode int
}

// EventType enumerates the event log's vocabulary, exactly the eight
// named in the user-visible surface.
type EventType string

const (
	EventBeginInstall   EventType = "begin_install"
	EventInstalled      EventType = "installed"
	EventBeginUpdate    EventType = "begin_update"
	EventUpdated        EventType = "updated"
	EventBeginUninstall EventType = "begin_uninstall"
	EventUninstalled    EventType = "uninstalled"
	EventBeginUpload    EventType = "begin_upload"
	EventUploaded       EventType = "uploaded"
)

// defaultCapacity bounds the ring buffer so an un-drained host can't grow
// it without limit; the oldest event is overwritten once full.
const defaultCapacity = 256

// EventLog is a fixed-capacity ring buffer of Events, drained by the host
// on each pump. Unlike the teacher's Broker it has no dedicated consumer
// goroutine or per-subscriber channel: Record is called from whichever
// goroutine completes an operation, and Drain empties the buffer under a
// single lock, which is all a "drained once per pump" consumer needs.
type EventLog struct {
	mu       sync.Mutex
	buf      []Event
	capacity int
	next     int
	full     bool
}

// NewEventLog returns an empty log with room for capacity events before
// it starts overwriting the oldest entry. capacity <= 0 uses
// defaultCapacity.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &EventLog{buf: make([]Event, capacity), capacity: capacity}
}

// Record appends an event, overwriting the oldest entry once the buffer
// is full.
func (l *EventLog) Record(modID types.ModID, eventType EventType, statusCode int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = Event{ModID: modID, Type: eventType, StatusCode: statusCode}
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
}

// Drain returns every event recorded since the last Drain, oldest first,
// and empties the buffer.
func (l *EventLog) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	if l.full {
		out = make([]Event, l.capacity)
		copy(out, l.buf[l.next:])
		copy(out[l.capacity-l.next:], l.buf[:l.next])
	} else {
		out = make([]Event, l.next)
		copy(out, l.buf[:l.next])
	}
	l.next = 0
	l.full = false
	return out
}
