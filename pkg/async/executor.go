// Package async provides the cooperative single-goroutine runtime every
// other subsystem schedules its work on: an Executor pumped explicitly by
// the host, Strands for FIFO-serialized sub-work, a ticket Queue for
// admission control on scarce resources, a cancelable Timer, and a
// Future[T] completion primitive for composed operations.
//
// The core spawns no background goroutines of its own beyond the ones a
// given I/O call needs to perform a blocking syscall; everything that
// looks like "scheduling" funnels back through Executor.Post so that the
// host controls when work actually runs.
package async

import "sync"

// Executor is a single-threaded run-loop: closures posted to it run, in
// posting order, the next time the host calls RunPending. It holds no
// goroutine of its own.
type Executor struct {
	mu     sync.Mutex
	posted []func()
	closed bool
}

// NewExecutor returns an empty, ready-to-pump executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Post queues fn to run on the next RunPending call. Safe to call from any
// goroutine, including from within a closure currently running on the
// executor (it runs after that closure returns, later in the same
// RunPending drain, not reentrantly).
func (e *Executor) Post(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.posted = append(e.posted, fn)
}

// RunPending drains and runs every closure queued as of this call,
// including ones posted by closures it runs along the way (so a chain of
// Post-and-complete operations fully drains in one pump). Returns the
// number of closures run.
func (e *Executor) RunPending() int {
	ran := 0
	for {
		e.mu.Lock()
		if len(e.posted) == 0 {
			e.mu.Unlock()
			return ran
		}
		batch := e.posted
		e.posted = nil
		e.mu.Unlock()

		for _, fn := range batch {
			fn()
			ran++
		}
	}
}

// Close stops accepting new work. Already-queued closures are dropped;
// callers that need graceful shutdown should drain via RunPending first.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.posted = nil
}

// Strand is a serializing sub-executor: closures posted to the same Strand
// never overlap and run in FIFO order, even though they execute on
// whichever goroutine happens to call RunPending or complete prior work.
// Grounded on the operation queue's CAS-exchange admission pattern,
// generalized from "one concurrent operation" to "one concurrent drain".
type Strand struct {
	exec *Executor

	mu     sync.Mutex
	queue  []func()
	active bool
}

// NewStrand returns a Strand whose drained work is posted to exec.
func NewStrand(exec *Executor) *Strand {
	return &Strand{exec: exec}
}

// Post enqueues fn for FIFO execution on this strand. If no drain is
// currently in flight, one is scheduled on the owning Executor.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	shouldSchedule := !s.active
	if shouldSchedule {
		s.active = true
	}
	s.mu.Unlock()

	if shouldSchedule {
		s.exec.Post(s.drain)
	}
}

func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.active = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}
