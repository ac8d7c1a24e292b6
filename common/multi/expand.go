package multi

import (
	"github.com/pkg/errors"

	"github.com/cfreal/ten/common/pool"
)

// Expand submits one request per combination of the Multis found in args
// and returns the results in submission order, which is the enumeration
// order. The "url" key of args holds the request URL and may contain Multis
// like any other value. A fresh pool is opened for the expansion and closed
// before returning.
func Expand[R any](transport pool.Transport[R], options *pool.Options, method string, args map[string]any) ([]pool.Result[R], error) {
	p, err := pool.New(transport, options)
	if err != nil {
		return nil, err
	}
	if err := p.Open(); err != nil {
		return nil, err
	}
	defer p.Close()
	if err := submitAll(p, method, args); err != nil {
		return nil, err
	}
	return p.InOrder()
}

// ExpandFirst runs the same expansion as Expand but consumes results in
// completion order and returns the first one for which match returns true,
// closing the pool right away so still-pending combinations are canceled.
// It returns (nil, nil) when no result matches.
func ExpandFirst[R any](transport pool.Transport[R], options *pool.Options, method string, args map[string]any, match func(pool.Result[R]) bool) (*pool.Result[R], error) {
	p, err := pool.New(transport, options)
	if err != nil {
		return nil, err
	}
	if err := p.Open(); err != nil {
		return nil, err
	}
	defer p.Close()
	if err := submitAll(p, method, args); err != nil {
		return nil, err
	}
	for result := range p.AsCompleted() {
		if result.Err != nil && p.Options().OnError == pool.PolicyRaise {
			return nil, result.Err
		}
		if match(result) {
			matched := result
			return &matched, nil
		}
	}
	return nil, nil
}

func submitAll[R any](p *pool.RequestPool[R], method string, args map[string]any) error {
	locations := Find(args)
	return combinations(locations, func(substitution Substitution) error {
		prepared, err := Apply(args, substitution)
		if err != nil {
			return err
		}
		url, err := popURL(prepared)
		if err != nil {
			return err
		}
		_, err = p.Submit(method, url, prepared, substitution)
		return err
	})
}

func popURL(args map[string]any) (string, error) {
	value, ok := args["url"]
	if !ok {
		return "", errors.New("request arguments carry no url")
	}
	url, ok := value.(string)
	if !ok {
		return "", errors.Errorf("request url is not a string: %T", value)
	}
	delete(args, "url")
	return url, nil
}
