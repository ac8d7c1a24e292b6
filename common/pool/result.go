package pool

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Result is the outcome of one request, carrying either a value or an
// error along with the tag it was submitted with.
type Result[R any] struct {
	Value R
	Err   error
	Tag   any
}

// Ok reports whether the request succeeded.
func (r Result[R]) Ok() bool {
	return r.Err == nil
}

// Errors aggregates the failures contained in a result set. It is meant for
// PolicyReturn retrievals, after which callers can check the whole batch at
// once; it returns nil when every result succeeded.
func Errors[R any](results []Result[R]) error {
	var err error
	for _, result := range results {
		if result.Err == nil {
			continue
		}
		if result.Tag != nil {
			err = multierr.Append(err, errors.Wrapf(result.Err, "%v", result.Tag))
		} else {
			err = multierr.Append(err, result.Err)
		}
	}
	return err
}
