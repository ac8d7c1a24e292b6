package session

import (
	"fmt"
	"strings"
)

// OutOfScopeError is returned when a request's resolved URL leaves the
// session's scope. The request is never sent.
type OutOfScopeError struct {
	URL  string
	Base string
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("%s is not within %s", e.URL, e.Base)
}

// UnexpectedStatusCodeError is returned by Response.Expect when the status
// code is not among the expected ones.
type UnexpectedStatusCodeError struct {
	URL        string
	StatusCode int
	Expected   []int
}

func (e *UnexpectedStatusCodeError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, code := range e.Expected {
		expected[i] = fmt.Sprintf("%d", code)
	}
	return fmt.Sprintf("unexpected status code %d for %s (expected %s)", e.StatusCode, e.URL, strings.Join(expected, ", "))
}
