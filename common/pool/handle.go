package pool

import (
	"sync/atomic"
)

// State describes where a request stands in its lifecycle.
type State int32

const (
	Pending State = iota
	Running
	Completed
	Failed
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Handle tracks a submitted request. It resolves exactly once, to a value,
// an error, or cancellation, and its tag never changes after submission.
type Handle[R any] struct {
	id     string
	seq    int
	method string
	url    string
	args   map[string]any
	tag    any

	state atomic.Int32
	done  chan struct{}
	value R
	err   error

	pool *RequestPool[R]
}

// ID returns the unique identifier assigned at submission.
func (h *Handle[R]) ID() string {
	return h.id
}

// Tag returns the value attached to the request at submission.
func (h *Handle[R]) Tag() any {
	return h.tag
}

// Method returns the request method.
func (h *Handle[R]) Method() string {
	return h.method
}

// URL returns the request URL as submitted.
func (h *Handle[R]) URL() string {
	return h.url
}

// State returns the current lifecycle state.
func (h *Handle[R]) State() State {
	return State(h.state.Load())
}

// Done returns a channel closed once the handle reaches a terminal state.
func (h *Handle[R]) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the handle is terminal and returns its outcome.
// A canceled handle returns ErrCanceled.
func (h *Handle[R]) Result() (R, error) {
	<-h.done
	if h.State() == Canceled {
		var zero R
		return zero, ErrCanceled
	}
	return h.value, h.err
}

// Cancel discards the request if it has not started running. It reports
// whether the handle moved to Canceled; a running or finished handle is
// left untouched.
func (h *Handle[R]) Cancel() bool {
	if !h.state.CompareAndSwap(int32(Pending), int32(Canceled)) {
		return false
	}
	close(h.done)
	if h.pool != nil {
		h.pool.terminal(h, false)
	}
	return true
}

func (h *Handle[R]) claim() bool {
	return h.state.CompareAndSwap(int32(Pending), int32(Running))
}

func (h *Handle[R]) finish(value R, err error) {
	h.value = value
	h.err = err
	if err != nil {
		h.state.Store(int32(Failed))
	} else {
		h.state.Store(int32(Completed))
	}
	close(h.done)
}
