package pool

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Policy selects what happens to failed requests when results are retrieved.
type Policy int

const (
	// PolicyRaise surfaces the first observed failure as an error and ends
	// the retrieval.
	PolicyRaise Policy = iota
	// PolicySkip drops failed requests from the results entirely.
	PolicySkip
	// PolicyReturn yields failures as tagged results, like successes.
	PolicyReturn
)

// ParsePolicy converts a policy name ("raise", "skip" or "return").
func ParsePolicy(value string) (Policy, error) {
	switch value {
	case "raise":
		return PolicyRaise, nil
	case "skip":
		return PolicySkip, nil
	case "return":
		return PolicyReturn, nil
	default:
		return PolicyRaise, errors.Errorf("unknown error policy: %s", value)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyRaise:
		return "raise"
	case PolicySkip:
		return "skip"
	case PolicyReturn:
		return "return"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Options contains configuration options for a request pool
type Options struct {
	// Workers is the maximum number of requests in flight at once
	Workers int
	// OnError selects the failed-request policy
	OnError Policy
	// RateLimit is the maximum number of requests per second, 0 for unlimited
	RateLimit int
	// Description enables the default progress sink with the given label
	Description string
	// Progress overrides the progress sink, nil for the default
	Progress Progress
}

// DefaultOptions contains the default configuration options for a pool
var DefaultOptions = Options{
	Workers: 10,
	OnError: PolicyRaise,
}

func (options *Options) validate() error {
	var err error
	if options.Workers <= 0 {
		err = multierr.Append(err, errors.Errorf("invalid worker count: %d", options.Workers))
	}
	if options.RateLimit < 0 {
		err = multierr.Append(err, errors.Errorf("invalid rate limit: %d", options.RateLimit))
	}
	if options.OnError < PolicyRaise || options.OnError > PolicyReturn {
		err = multierr.Append(err, errors.Errorf("unknown error policy: %d", options.OnError))
	}
	return err
}
