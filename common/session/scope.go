package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/bluele/gcache"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"

	"github.com/cfreal/ten/common/multi"
	"github.com/cfreal/ten/common/pool"
)

const scopeCacheSize = 512

// Scope is the boundary a ScopedSession restricts requests to: scheme,
// host and port must match exactly, and the path must start with the base
// path. Derived once from the base URL.
type Scope struct {
	Scheme string
	Host   string
	Port   string
	Path   string
}

// ScopedSession wraps a Session with a base URL: relative URLs resolve
// against it, and every request is checked against the scope before it is
// sent. Out-of-scope requests fail with OutOfScopeError, always.
type ScopedSession struct {
	*Session
	Base  string
	scope Scope

	parsed gcache.Cache
}

// NewScoped creates a ScopedSession for the given base URL. A single
// trailing slash on the base is dropped.
func NewScoped(baseURL string, options *Options) (*ScopedSession, error) {
	base := strings.TrimSuffix(baseURL, "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse base url %s", baseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.Errorf("unsupported base url scheme: %s", baseURL)
	}
	inner, err := New(options)
	if err != nil {
		return nil, err
	}
	return &ScopedSession{
		Session: inner,
		Base:    base,
		scope: Scope{
			Scheme: parsed.Scheme,
			Host:   parsed.Hostname(),
			Port:   parsed.Port(),
			Path:   parsed.EscapedPath(),
		},
		parsed: gcache.New(scopeCacheSize).LRU().Build(),
	}, nil
}

// Scope returns the boundary derived from the base URL.
func (s *ScopedSession) Scope() Scope {
	return s.scope
}

// Resolve makes a URL absolute: URLs that already carry an http or https
// scheme pass through unchanged, anything else is appended verbatim to the
// base URL. No normalization happens, so segments like .. survive.
func (s *ScopedSession) Resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return s.Base + target
}

// InScope reports whether a URL stays inside the session's scope once
// resolved. The check is textual: exact scheme, host and port, and the
// base path as a string prefix. Safe for concurrent use.
func (s *ScopedSession) InScope(target string) bool {
	parsed, err := s.parse(s.Resolve(target))
	if err != nil {
		return false
	}
	return parsed.Scheme == s.scope.Scheme &&
		parsed.Hostname() == s.scope.Host &&
		parsed.Port() == s.scope.Port &&
		strings.HasPrefix(parsed.EscapedPath(), s.scope.Path)
}

func (s *ScopedSession) parse(resolved string) (*url.URL, error) {
	if cached, err := s.parsed.Get(resolved); err == nil {
		return cached.(*url.URL), nil
	}
	parsed, err := url.Parse(resolved)
	if err != nil {
		return nil, err
	}
	_ = s.parsed.Set(resolved, parsed)
	return parsed, nil
}

// Send resolves the URL, verifies it is in scope and delegates to the
// wrapped session. The scope check happens synchronously, before the
// request reaches the transport, and is never retried.
func (s *ScopedSession) Send(ctx context.Context, method, target string, args map[string]any) (*Response, error) {
	resolved := s.Resolve(target)
	if !s.InScope(target) {
		gologger.Debug().Msgf("Refused out of scope url: %s\n", resolved)
		return nil, &OutOfScopeError{URL: resolved, Base: s.Base}
	}
	return s.Session.Send(ctx, method, resolved, args)
}

// Get sends a GET request relative to the base URL.
func (s *ScopedSession) Get(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodGet, url, args)
}

// Post sends a POST request relative to the base URL.
func (s *ScopedSession) Post(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodPost, url, args)
}

// Put sends a PUT request relative to the base URL.
func (s *ScopedSession) Put(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodPut, url, args)
}

// Patch sends a PATCH request relative to the base URL.
func (s *ScopedSession) Patch(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodPatch, url, args)
}

// Delete sends a DELETE request relative to the base URL.
func (s *ScopedSession) Delete(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodDelete, url, args)
}

// Head sends a HEAD request relative to the base URL.
func (s *ScopedSession) Head(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodHead, url, args)
}

// Pool creates a RequestPool driving this session, scope checks included.
func (s *ScopedSession) Pool(options *pool.Options) (*pool.RequestPool[*Response], error) {
	return pool.New[*Response](s, options)
}

// Expand runs one request per combination of the Multis found in args and
// returns the results in submission order. URLs resolve against the base.
func (s *ScopedSession) Expand(options *pool.Options, method, url string, args map[string]any) ([]pool.Result[*Response], error) {
	return multi.Expand[*Response](s, options, method, withURL(args, url))
}

// ExpandFirst runs the same expansion as Expand and returns the first
// result matching the predicate, or nil if none does.
func (s *ScopedSession) ExpandFirst(options *pool.Options, method, url string, args map[string]any, match func(pool.Result[*Response]) bool) (*pool.Result[*Response], error) {
	return multi.ExpandFirst[*Response](s, options, method, withURL(args, url), match)
}
