package pool

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// echo is a transport that replies with the url it was given.
func echo() Transport[string] {
	return TransportFunc[string](func(ctx context.Context, method, url string, args map[string]any) (string, error) {
		return url, nil
	})
}

// gate is a transport that reports every request it starts and blocks it
// until released.
type gate struct {
	started chan string
	release chan struct{}
}

func newGate(buffer int) *gate {
	return &gate{started: make(chan string, buffer), release: make(chan struct{})}
}

func (g *gate) Send(ctx context.Context, method, url string, args map[string]any) (string, error) {
	g.started <- url
	<-g.release
	return url, nil
}

func TestPoolInOrder(t *testing.T) {
	p, err := New(echo(), &Options{Workers: 3})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	for i := 0; i < 10; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")

	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, 10, len(results), "got wrong result count")
	for i, result := range results {
		require.Equal(t, i, result.Tag, "results out of submission order")
		require.Equal(t, fmt.Sprintf("http://target.tld/%d", i), result.Value, "got wrong value")
	}
}

func TestPoolRunsOnlyAfterOpen(t *testing.T) {
	g := newGate(3)
	p, err := New[string](g, &Options{Workers: 3})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	for i := 0; i < 3; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	select {
	case url := <-g.started:
		t.Fatalf("request %s started before the pool opened", url)
	default:
	}

	require.Nil(t, p.Open(), "could not open pool")
	for i := 0; i < 3; i++ {
		<-g.started
	}
	close(g.release)
	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, 3, len(results), "got wrong result count")
}

func TestPoolLiveSubmissions(t *testing.T) {
	p, err := New(echo(), &Options{Workers: 4})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	require.Nil(t, p.Open(), "could not open pool")
	for i := 0; i < 20; i++ {
		_, err := p.Get("http://target.tld/first", nil, i)
		require.Nil(t, err, "could not submit request")
	}

	var total int
	grown := false
	for range p.AsCompleted() {
		total++
		if !grown {
			grown = true
			for i := 100; i < 110; i++ {
				_, err := p.Get("http://target.tld/late", nil, i)
				require.Nil(t, err, "could not submit request mid-iteration")
			}
		}
	}
	require.Equal(t, 30, total, "late submissions were missed by the stream")

	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	expected := make([]any, 0, 30)
	for i := 0; i < 20; i++ {
		expected = append(expected, i)
	}
	for i := 100; i < 110; i++ {
		expected = append(expected, i)
	}
	tags := make([]any, 0, len(results))
	for _, result := range results {
		tags = append(tags, result.Tag)
	}
	require.Equal(t, expected, tags, "submission order broken by late submissions")
}

func TestPoolPolicyRaise(t *testing.T) {
	boom3 := errors.New("boom 3")
	boom7 := errors.New("boom 7")
	transport := TransportFunc[string](func(ctx context.Context, method, url string, args map[string]any) (string, error) {
		switch url {
		case "http://target.tld/3":
			return "", boom3
		case "http://target.tld/7":
			return "", boom7
		}
		return url, nil
	})
	p, err := New[string](transport, &Options{Workers: 5})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	for i := 0; i < 10; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")

	results, err := p.InOrder()
	require.Equal(t, boom3, err, "expected the first failure in submission order")
	require.Nil(t, results, "no results expected on failure")
}

func TestPoolPolicySkip(t *testing.T) {
	boom := errors.New("boom")
	transport := TransportFunc[string](func(ctx context.Context, method, url string, args map[string]any) (string, error) {
		if url == "http://target.tld/13" {
			return "", boom
		}
		return url, nil
	})
	p, err := New[string](transport, &Options{Workers: 5, OnError: PolicySkip})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	for i := 0; i < 20; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")

	var count int
	for result := range p.AsCompleted() {
		require.Nil(t, result.Err, "failed requests must be skipped")
		count++
	}
	require.Equal(t, 19, count, "expected the failed request to be dropped")

	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, 19, len(results), "expected the failed request to be dropped")
}

func TestPoolPolicyReturn(t *testing.T) {
	boom := errors.New("boom")
	transport := TransportFunc[string](func(ctx context.Context, method, url string, args map[string]any) (string, error) {
		if url == "http://target.tld/13" {
			return "", boom
		}
		return url, nil
	})
	p, err := New[string](transport, &Options{Workers: 5, OnError: PolicyReturn})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	for i := 0; i < 20; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")

	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, 20, len(results), "got wrong result count")
	require.Equal(t, boom, results[13].Err, "failure should come back as a result")
	require.False(t, results[13].Ok(), "failed result should not be ok")
	require.True(t, results[12].Ok(), "successful result should be ok")
	require.NotNil(t, Errors(results), "expected an aggregate error")
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p, err := New(echo(), nil)
	require.Nil(t, err, "could not create pool")
	require.Nil(t, p.Open(), "could not open pool")
	require.Nil(t, p.Close(), "could not close pool")

	_, err = p.Get("http://target.tld/", nil, nil)
	require.Equal(t, ErrPoolClosed, err, "submissions must fail after shutdown")
	require.Equal(t, ErrPoolClosed, p.Open(), "reopening a closed pool must fail")
	require.Nil(t, p.Close(), "close must be idempotent")
}

func TestPoolCloseCancelsPending(t *testing.T) {
	g := newGate(20)
	p, err := New[string](g, &Options{Workers: 2})
	require.Nil(t, err, "could not create pool")
	for i := 0; i < 20; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")
	<-g.started
	<-g.started
	require.Nil(t, p.Close(), "could not close pool")
	close(g.release)

	var canceled, completed int
	for _, h := range p.Handles() {
		<-h.Done()
		switch h.State() {
		case Canceled:
			canceled++
			_, err := h.Result()
			require.Equal(t, ErrCanceled, err, "canceled handle must resolve to ErrCanceled")
		case Completed:
			completed++
		default:
			t.Fatalf("unexpected handle state %s", h.State())
		}
	}
	require.Equal(t, 18, canceled, "pending requests must be canceled on close")
	require.Equal(t, 2, completed, "running requests must be left to finish")

	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, 2, len(results), "canceled requests must be omitted from results")
}

func TestPoolCloseWithoutOpen(t *testing.T) {
	p, err := New(echo(), nil)
	require.Nil(t, err, "could not create pool")
	h, err := p.Get("http://target.tld/", nil, nil)
	require.Nil(t, err, "could not submit request")
	require.Nil(t, p.Close(), "could not close pool")
	require.Equal(t, Canceled, h.State(), "queued request must be canceled on close")

	var count int
	for range p.AsCompleted() {
		count++
	}
	require.Equal(t, 0, count, "canceled requests must not reach the stream")
}

func TestPoolAsCompletedOrder(t *testing.T) {
	release := make(chan struct{})
	transport := TransportFunc[string](func(ctx context.Context, method, url string, args map[string]any) (string, error) {
		if url == "http://target.tld/slow" {
			<-release
		}
		return url, nil
	})
	p, err := New[string](transport, &Options{Workers: 2})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	_, err = p.Get("http://target.tld/slow", nil, "slow")
	require.Nil(t, err, "could not submit request")
	_, err = p.Get("http://target.tld/fast", nil, "fast")
	require.Nil(t, err, "could not submit request")
	require.Nil(t, p.Open(), "could not open pool")

	stream := p.AsCompleted()
	first := <-stream
	require.Equal(t, "fast", first.Tag, "completion order must drive the stream")
	close(release)
	second := <-stream
	require.Equal(t, "slow", second.Tag, "got wrong second result")
	_, more := <-stream
	require.False(t, more, "stream must end once drained")

	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, "slow", results[0].Tag, "in order retrieval must follow submission order")
	require.Equal(t, "fast", results[1].Tag, "in order retrieval must follow submission order")
}

// recordingProgress counts updates and signals once the expected number of
// requests advanced.
type recordingProgress struct {
	mu       sync.Mutex
	total    int
	advanced int
	stopped  int
	want     int
	done     chan struct{}
}

func newRecordingProgress(want int) *recordingProgress {
	return &recordingProgress{want: want, done: make(chan struct{})}
}

func (r *recordingProgress) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += total
}

func (r *recordingProgress) Grow(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total += n
}

func (r *recordingProgress) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced++
	if r.advanced == r.want {
		close(r.done)
	}
}

func (r *recordingProgress) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
}

func TestPoolProgress(t *testing.T) {
	progress := newRecordingProgress(8)
	p, err := New(echo(), &Options{Workers: 2, Progress: progress})
	require.Nil(t, err, "could not create pool")
	for i := 0; i < 5; i++ {
		_, err := p.Get("http://target.tld/", nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")
	for i := 0; i < 3; i++ {
		_, err := p.Get("http://target.tld/", nil, i)
		require.Nil(t, err, "could not submit request")
	}
	_, err = p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	<-progress.done
	require.Nil(t, p.Close(), "could not close pool")

	progress.mu.Lock()
	defer progress.mu.Unlock()
	require.Equal(t, 8, progress.total, "progress total must track submissions")
	require.Equal(t, 8, progress.advanced, "progress must advance once per request")
	require.Equal(t, 1, progress.stopped, "progress must stop with the pool")
}

func TestPoolProgressOnCancel(t *testing.T) {
	g := newGate(20)
	progress := newRecordingProgress(20)
	p, err := New[string](g, &Options{Workers: 2, Progress: progress})
	require.Nil(t, err, "could not create pool")
	for i := 0; i < 20; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")
	<-g.started
	<-g.started
	require.Nil(t, p.Close(), "could not close pool")
	close(g.release)
	<-progress.done

	progress.mu.Lock()
	defer progress.mu.Unlock()
	require.Equal(t, 20, progress.total, "progress total must track submissions")
	require.Equal(t, 20, progress.advanced, "canceled requests must advance the progress too")
}

func TestHandleCancel(t *testing.T) {
	g := newGate(1)
	p, err := New[string](g, &Options{Workers: 1})
	require.Nil(t, err, "could not create pool")
	pending, err := p.Get("http://target.tld/a", nil, nil)
	require.Nil(t, err, "could not submit request")
	require.Equal(t, Pending, pending.State(), "got wrong initial state")
	require.True(t, pending.Cancel(), "pending handle should cancel")
	require.False(t, pending.Cancel(), "second cancel must report false")
	require.Equal(t, Canceled, pending.State(), "got wrong state after cancel")
	_, err = pending.Result()
	require.Equal(t, ErrCanceled, err, "canceled handle must resolve to ErrCanceled")

	running, err := p.Get("http://target.tld/b", nil, nil)
	require.Nil(t, err, "could not submit request")
	require.Nil(t, p.Open(), "could not open pool")
	<-g.started
	require.Equal(t, Running, running.State(), "got wrong state while in flight")
	require.False(t, running.Cancel(), "running handle must not cancel")
	close(g.release)
	value, err := running.Result()
	require.Nil(t, err, "could not resolve handle")
	require.Equal(t, "http://target.tld/b", value, "got wrong value")
	require.Equal(t, Completed, running.State(), "got wrong final state")
	require.Nil(t, p.Close(), "could not close pool")
}

func TestPoolSubmitCopiesArguments(t *testing.T) {
	captured := make(chan map[string]any, 1)
	transport := TransportFunc[string](func(ctx context.Context, method, url string, args map[string]any) (string, error) {
		captured <- args
		return url, nil
	})
	p, err := New[string](transport, nil)
	require.Nil(t, err, "could not create pool")
	defer p.Close()

	args := map[string]any{"params": map[string]any{"id": 1}}
	_, err = p.Get("http://target.tld/", args, nil)
	require.Nil(t, err, "could not submit request")
	args["params"].(map[string]any)["id"] = 99

	require.Nil(t, p.Open(), "could not open pool")
	got := <-captured
	require.Equal(t, 1, got["params"].(map[string]any)["id"], "arguments must be copied at submission")
}

func TestPoolRateLimit(t *testing.T) {
	p, err := New(echo(), &Options{Workers: 2, RateLimit: 100})
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	for i := 0; i < 5; i++ {
		_, err := p.Get(fmt.Sprintf("http://target.tld/%d", i), nil, i)
		require.Nil(t, err, "could not submit request")
	}
	require.Nil(t, p.Open(), "could not open pool")
	results, err := p.InOrder()
	require.Nil(t, err, "could not retrieve results")
	require.Equal(t, 5, len(results), "got wrong result count")
}

func TestPoolLen(t *testing.T) {
	p, err := New(echo(), nil)
	require.Nil(t, err, "could not create pool")
	defer p.Close()
	require.Equal(t, 0, p.Len(), "fresh pool should be empty")
	for i := 0; i < 4; i++ {
		_, err := p.Get("http://target.tld/", nil, nil)
		require.Nil(t, err, "could not submit request")
	}
	require.Equal(t, 4, p.Len(), "got wrong submission count")
	require.Equal(t, 4, len(p.Handles()), "got wrong handle count")
}

func TestErrors(t *testing.T) {
	boom := errors.New("boom")
	results := []Result[string]{
		{Value: "ok", Tag: "a"},
		{Err: boom, Tag: "b"},
		{Err: boom},
	}
	err := Errors(results)
	require.NotNil(t, err, "expected an aggregate error")
	require.Contains(t, err.Error(), "boom", "aggregate must carry the failure")
	require.Contains(t, err.Error(), "b", "aggregate must carry the tag")
	require.Nil(t, Errors([]Result[string]{{Value: "ok"}}), "no error expected for successful results")
}
