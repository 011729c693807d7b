package session

import "sync"

// outbox is a bounded per-session outbound queue with a drop-oldest
// policy (spec §4.3.2). Unlike the teacher's Conn.Send — a synchronous
// write under a mutex, with no queue at all — this spec requires an
// explicit backlog so a slow consumer can fall behind without blocking
// the scheduler's single broadcaster goroutine; the drop-oldest
// eviction and per-kind lag-close threshold have no stdlib channel
// primitive, so they are implemented directly over a mutex-guarded
// ring rather than forced into a buffered channel.
type outbox struct {
	mu       sync.Mutex
	pending  [][]byte
	bound    int // 0 means unbounded: nothing is ever evicted
	overflow int
	notify   chan struct{}
	closed   bool
}

func newOutbox(bound int) *outbox {
	return &outbox{
		bound:  bound,
		notify: make(chan struct{}, 1),
	}
}

// push appends data, evicting the oldest pending message if the queue
// is at its bound. It returns true once the caller should close the
// session for sustained lag (spec §4.3.2): the number of evictions since
// the last drain has reached lagCloseThreshold. A threshold of 0 never
// signals a close.
func (o *outbox) push(data []byte, lagCloseThreshold int) (shouldClose bool) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if o.bound > 0 && len(o.pending) >= o.bound {
		o.pending = append(o.pending[1:], data)
		o.overflow++
	} else {
		o.pending = append(o.pending, data)
	}
	shouldClose = lagCloseThreshold > 0 && o.overflow >= lagCloseThreshold
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return shouldClose
}

// drain returns every currently pending message and clears the queue,
// resetting the overflow counter (a successful drain means the
// consumer caught up).
func (o *outbox) drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.pending
	o.pending = nil
	o.overflow = 0
	return out
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}
