package pool

import "context"

// Transport is the capability a pool drives: send one request, get one
// response or an error. Implementations must be safe for concurrent use.
type Transport[R any] interface {
	Send(ctx context.Context, method, url string, args map[string]any) (R, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc[R any] func(ctx context.Context, method, url string, args map[string]any) (R, error)

func (f TransportFunc[R]) Send(ctx context.Context, method, url string, args map[string]any) (R, error) {
	return f(ctx, method, url, args)
}
