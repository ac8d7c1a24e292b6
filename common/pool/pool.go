package pool

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ratelimit"
	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/xid"
)

const asCompletedPollInterval = 300 * time.Millisecond

var (
	// ErrPoolClosed is returned by Submit once the pool has been closed.
	ErrPoolClosed = errors.New("cannot schedule new requests after shutdown")
	// ErrCanceled is returned when resolving a handle that was discarded
	// before it started running.
	ErrCanceled = errors.New("request was canceled")
)

// RequestPool runs submitted requests against a transport with bounded
// parallelism. The submission queue is live and append-only: requests can be
// added at any moment between Open and Close, including from a goroutine
// consuming AsCompleted. Results come back in submission order through
// InOrder or in completion order through AsCompleted, with failures handled
// according to the configured Policy.
type RequestPool[R any] struct {
	options   Options
	transport Transport[R]
	limiter   *ratelimit.Limiter
	progress  Progress

	swg   sizedwaitgroup.SizedWaitGroup
	tasks sync.WaitGroup
	quit  chan struct{}

	mu       sync.Mutex
	queue    []*Handle[R]
	log      []*Handle[R]
	finished int
	pulse    chan struct{}
	opened   bool
	closed   bool
}

// New creates a RequestPool around the given transport. Options may be nil,
// in which case DefaultOptions apply.
func New[R any](transport Transport[R], options *Options) (*RequestPool[R], error) {
	if transport == nil {
		return nil, errors.New("no transport provided")
	}
	opts := DefaultOptions
	if options != nil {
		opts = *options
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultOptions.Workers
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	p := &RequestPool[R]{
		options:   opts,
		transport: transport,
		swg:       sizedwaitgroup.New(opts.Workers),
		quit:      make(chan struct{}),
		pulse:     make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		p.limiter = ratelimit.New(context.Background(), uint(opts.RateLimit), time.Second)
	} else {
		p.limiter = ratelimit.NewUnlimited(context.Background())
	}
	switch {
	case opts.Progress != nil:
		p.progress = opts.Progress
	case opts.Description != "":
		p.progress = &statsProgress{description: opts.Description}
	default:
		p.progress = NopProgress{}
	}
	return p, nil
}

// Open starts executing queued and future submissions. The progress sink, if
// any, is initialized with the number of requests queued so far. Open is
// idempotent.
func (p *RequestPool[R]) Open() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.opened {
		p.mu.Unlock()
		return nil
	}
	p.opened = true
	queued := make([]*Handle[R], len(p.queue))
	copy(queued, p.queue)
	p.tasks.Add(len(queued))
	p.mu.Unlock()

	p.progress.Start(len(queued))
	for _, h := range queued {
		go p.run(h)
	}
	return nil
}

// Submit enqueues a request and returns immediately with its pending Handle.
// The tag is kept on the handle untouched and comes back with the result.
// Submissions are accepted before Open, and fail with ErrPoolClosed after
// Close.
func (p *RequestPool[R]) Submit(method, url string, args map[string]any, tag any) (*Handle[R], error) {
	h := &Handle[R]{
		id:     xid.New().String(),
		method: method,
		url:    url,
		args:   copyArgs(args),
		tag:    tag,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	h.seq = len(p.queue)
	h.pool = p
	p.queue = append(p.queue, h)
	started := p.opened
	if started {
		p.tasks.Add(1)
	}
	p.wakeLocked()
	p.mu.Unlock()

	if started {
		p.progress.Grow(1)
		go p.run(h)
	}
	gologger.Debug().Msgf("Queued %s %s [%s]\n", h.method, h.url, h.id)
	return h, nil
}

// Get submits a GET request.
func (p *RequestPool[R]) Get(url string, args map[string]any, tag any) (*Handle[R], error) {
	return p.Submit(http.MethodGet, url, args, tag)
}

// Post submits a POST request.
func (p *RequestPool[R]) Post(url string, args map[string]any, tag any) (*Handle[R], error) {
	return p.Submit(http.MethodPost, url, args, tag)
}

// Options returns the pool's effective configuration.
func (p *RequestPool[R]) Options() Options {
	return p.options
}

// Len returns the number of requests submitted so far.
func (p *RequestPool[R]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Handles returns a snapshot of every handle submitted so far, in
// submission order.
func (p *RequestPool[R]) Handles() []*Handle[R] {
	p.mu.Lock()
	defer p.mu.Unlock()
	handles := make([]*Handle[R], len(p.queue))
	copy(handles, p.queue)
	return handles
}

func (p *RequestPool[R]) run(h *Handle[R]) {
	defer p.tasks.Done()
	p.swg.Add()
	defer p.swg.Done()
	if !h.claim() {
		// canceled while queued
		return
	}
	p.limiter.Take()
	value, err := p.transport.Send(context.Background(), h.method, h.url, h.args)
	h.finish(value, err)
	if err != nil {
		gologger.Debug().Msgf("Failed %s %s: %s [%s]\n", h.method, h.url, err, h.id)
	}
	p.terminal(h, true)
}

// terminal records a handle that reached a terminal state. Completed and
// failed handles enter the completion log consumed by AsCompleted; canceled
// ones only bump the finished count so retrievals can end.
func (p *RequestPool[R]) terminal(h *Handle[R], logged bool) {
	p.mu.Lock()
	if logged {
		p.log = append(p.log, h)
	}
	p.finished++
	opened := p.opened
	p.wakeLocked()
	p.mu.Unlock()

	if opened {
		p.progress.Advance()
	}
}

func (p *RequestPool[R]) wakeLocked() {
	close(p.pulse)
	p.pulse = make(chan struct{})
}

// InOrder blocks until every request submitted before the call is resolved,
// then returns their results in submission order. Canceled requests are
// omitted; failed ones follow the pool policy: with PolicyRaise the first
// failure in submission order is returned as the error, with PolicySkip
// failures are dropped, with PolicyReturn they appear as error results.
func (p *RequestPool[R]) InOrder() ([]Result[R], error) {
	snapshot := p.Handles()
	results := make([]Result[R], 0, len(snapshot))
	for _, h := range snapshot {
		<-h.done
		switch h.State() {
		case Canceled:
			continue
		case Failed:
			switch p.options.OnError {
			case PolicyRaise:
				return nil, h.err
			case PolicySkip:
				continue
			case PolicyReturn:
				results = append(results, Result[R]{Err: h.err, Tag: h.tag})
			}
		default:
			results = append(results, Result[R]{Value: h.value, Tag: h.tag})
		}
	}
	return results, nil
}

// AsCompleted streams results in the order requests finish. The stream is
// live: submissions made while it is being consumed are picked up by the
// same iteration, and it ends once every known request is resolved and no
// new submission has shown up since the previous check. Failed requests
// follow the pool policy; with PolicyRaise the failure is emitted and the
// stream ends. Closing the pool also ends the stream.
func (p *RequestPool[R]) AsCompleted() <-chan Result[R] {
	results := make(chan Result[R])
	go func() {
		defer close(results)
		var cursor int
		lastKnown := -1
		for {
			p.mu.Lock()
			batch := p.log[cursor:]
			cursor = len(p.log)
			known := len(p.queue)
			finished := p.finished
			pulse := p.pulse
			p.mu.Unlock()

			if len(batch) > 0 {
				for _, h := range batch {
					result, ok := p.resultOf(h)
					if !ok {
						continue
					}
					select {
					case results <- result:
					case <-p.quit:
						// pool closed with no consumer left
						return
					}
					if result.Err != nil && p.options.OnError == PolicyRaise {
						return
					}
				}
				lastKnown = -1
				continue
			}

			if finished == known {
				if known == lastKnown {
					return
				}
				lastKnown = known
			} else {
				lastKnown = -1
			}

			select {
			case <-pulse:
			case <-time.After(asCompletedPollInterval):
			}
		}
	}()
	return results
}

func (p *RequestPool[R]) resultOf(h *Handle[R]) (Result[R], bool) {
	switch h.State() {
	case Canceled:
		return Result[R]{}, false
	case Failed:
		if p.options.OnError == PolicySkip {
			gologger.Warning().Msgf("Skipping failed request %s %s: %s\n", h.method, h.url, h.err)
			return Result[R]{}, false
		}
		return Result[R]{Err: h.err, Tag: h.tag}, true
	default:
		return Result[R]{Value: h.value, Tag: h.tag}, true
	}
}

// Close cancels every request that has not started running and refuses
// further submissions. Requests already in flight are left to finish on
// their own; Close does not wait for them. Idempotent.
func (p *RequestPool[R]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.quit)
	pending := make([]*Handle[R], len(p.queue))
	copy(pending, p.queue)
	p.mu.Unlock()

	canceled := 0
	for _, h := range pending {
		if h.Cancel() {
			canceled++
		}
	}
	if canceled > 0 {
		gologger.Debug().Msgf("Canceled %d queued requests\n", canceled)
	}

	go func() {
		p.tasks.Wait()
		p.limiter.Stop()
	}()

	p.progress.Stop()
	return nil
}
