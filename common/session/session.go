package session

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/corpix/uarand"
	"github.com/pkg/errors"
	retryablehttp "github.com/projectdiscovery/retryablehttp-go"
	urlutil "github.com/projectdiscovery/utils/url"
	"golang.org/x/net/http2"

	"github.com/cfreal/ten/common/multi"
	"github.com/cfreal/ten/common/pool"
)

// Session is an HTTP client tuned for probing: by default it does not
// verify TLS certificates, does not follow redirects, and sends URLs
// exactly as given. It satisfies the pool transport contract, so it can
// back a RequestPool or a Multi expansion directly.
type Session struct {
	Options *Options

	client       *retryablehttp.Client
	clientFollow *retryablehttp.Client
	transport    *http.Transport

	mu          sync.Mutex
	proxy       string
	savedProxy  string
	savedVerify bool
	burp        bool
}

// New creates a Session. Options may be nil, in which case DefaultOptions
// apply.
func New(options *Options) (*Session, error) {
	opts := DefaultOptions
	if options != nil {
		opts = *options
	}
	opts.fillDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Proxy != "" {
		if _, err := url.Parse(opts.Proxy); err != nil {
			return nil, errors.Wrap(err, "could not parse proxy url")
		}
	}

	session := &Session{
		Options: &opts,
		proxy:   opts.Proxy,
	}

	retryablehttpOptions := retryablehttp.DefaultOptionsSingle
	retryablehttpOptions.RetryMax = opts.RetryMax

	var roundTripper http.RoundTripper
	if opts.HTTP2 {
		roundTripper = &http2.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !opts.VerifyTLS,
				MinVersion:         tls.VersionTLS10,
			},
			AllowHTTP: true,
		}
	} else {
		session.transport = &http.Transport{
			Proxy:               session.proxyURL,
			MaxIdleConnsPerHost: opts.MaxConnections,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !opts.VerifyTLS,
				MinVersion:         tls.VersionTLS10,
			},
		}
		roundTripper = session.transport
	}

	noFollow := func(_ *http.Request, _ []*http.Request) error {
		// Tell the http client to not follow redirect
		return http.ErrUseLastResponse
	}
	follow := func(redirectedRequest *http.Request, previousRequests []*http.Request) error {
		if len(previousRequests) >= opts.MaxRedirects {
			// https://github.com/golang/go/issues/10069
			return http.ErrUseLastResponse
		}
		return nil
	}

	session.client = retryablehttp.NewWithHTTPClient(&http.Client{
		Transport:     roundTripper,
		CheckRedirect: noFollow,
	}, retryablehttpOptions)
	session.clientFollow = retryablehttp.NewWithHTTPClient(&http.Client{
		Transport:     roundTripper,
		CheckRedirect: follow,
	}, retryablehttpOptions)

	return session, nil
}

// Send performs one request and returns its response. It is the transport
// primitive every other way of issuing requests goes through. The args tree
// holds the request options: params, headers, cookies, data, json, timeout,
// follow_redirects. Unknown keys are rejected.
func (s *Session) Send(ctx context.Context, method, target string, args map[string]any) (*Response, error) {
	spec, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}

	target = appendParams(target, spec.Params)
	body, contentType, err := buildBody(spec)
	if err != nil {
		return nil, err
	}

	urlx, err := urlutil.ParseURL(target, s.Options.RawURLs)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse url %s", target)
	}

	if timeout, err := timeoutValue(spec.Timeout, s.Options.Timeout); err != nil {
		return nil, err
	} else if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var bodyArg interface{}
	if body != nil {
		bodyArg = body
	}
	req, err := retryablehttp.NewRequestFromURLWithContext(ctx, method, urlx, bodyArg)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	if contentType != "" && !hasHeader(spec.Headers, "Content-Type") {
		req.Header.Set("Content-Type", contentType)
	}
	s.setHeaders(req, spec)

	client := s.client
	followRedirects := s.Options.FollowRedirects
	if spec.FollowRedirects != nil {
		followRedirects = *spec.FollowRedirects
	}
	if followRedirects {
		client = s.clientFollow
	}

	timeStart := time.Now()
	httpresp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.buildResponse(httpresp)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(timeStart)
	resp.RequestDump = dumpRequest(req, body)
	return resp, nil
}

// Get sends a GET request.
func (s *Session) Get(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodGet, url, args)
}

// Post sends a POST request.
func (s *Session) Post(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodPost, url, args)
}

// Put sends a PUT request.
func (s *Session) Put(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodPut, url, args)
}

// Patch sends a PATCH request.
func (s *Session) Patch(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodPatch, url, args)
}

// Delete sends a DELETE request.
func (s *Session) Delete(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodDelete, url, args)
}

// Head sends a HEAD request.
func (s *Session) Head(ctx context.Context, url string, args map[string]any) (*Response, error) {
	return s.Send(ctx, http.MethodHead, url, args)
}

// Pool creates a RequestPool driving this session.
func (s *Session) Pool(options *pool.Options) (*pool.RequestPool[*Response], error) {
	return pool.New[*Response](s, options)
}

// Expand runs one request per combination of the Multis found in args and
// returns the results in submission order.
func (s *Session) Expand(options *pool.Options, method, url string, args map[string]any) ([]pool.Result[*Response], error) {
	return multi.Expand[*Response](s, options, method, withURL(args, url))
}

// ExpandFirst runs the same expansion as Expand and returns the first
// result matching the predicate, or nil if none does.
func (s *Session) ExpandFirst(options *pool.Options, method, url string, args map[string]any, match func(pool.Result[*Response]) bool) (*pool.Result[*Response], error) {
	return multi.ExpandFirst[*Response](s, options, method, withURL(args, url), match)
}

// SetProxy routes subsequent requests through the given proxy URL, or
// disables proxying when empty. New connections pick it up; idle ones are
// dropped.
func (s *Session) SetProxy(proxy string) error {
	if proxy != "" {
		if _, err := url.Parse(proxy); err != nil {
			return errors.Wrap(err, "could not parse proxy url")
		}
	}
	s.mu.Lock()
	s.proxy = proxy
	s.mu.Unlock()
	s.dropIdleConnections()
	return nil
}

// Burp sends subsequent traffic through the configured intercept proxy and
// disables TLS verification until Unburp is called.
func (s *Session) Burp() {
	s.mu.Lock()
	if s.burp {
		s.mu.Unlock()
		return
	}
	s.burp = true
	s.savedProxy = s.proxy
	s.proxy = s.Options.BurpProxy
	if s.transport != nil {
		s.savedVerify = !s.transport.TLSClientConfig.InsecureSkipVerify
		s.transport.TLSClientConfig.InsecureSkipVerify = true
	}
	s.mu.Unlock()
	s.dropIdleConnections()
}

// Unburp restores the proxy and TLS settings Burp replaced.
func (s *Session) Unburp() {
	s.mu.Lock()
	if !s.burp {
		s.mu.Unlock()
		return
	}
	s.burp = false
	s.proxy = s.savedProxy
	if s.transport != nil {
		s.transport.TLSClientConfig.InsecureSkipVerify = !s.savedVerify
	}
	s.mu.Unlock()
	s.dropIdleConnections()
}

// Close drops the session's idle connections.
func (s *Session) Close() error {
	s.dropIdleConnections()
	return nil
}

func (s *Session) dropIdleConnections() {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
}

func (s *Session) proxyURL(_ *http.Request) (*url.URL, error) {
	s.mu.Lock()
	proxy := s.proxy
	s.mu.Unlock()
	if proxy == "" {
		return nil, nil
	}
	return url.Parse(proxy)
}

func (s *Session) setHeaders(req *retryablehttp.Request, spec *requestArgs) {
	req.Header.Set("User-Agent", s.Options.DefaultUserAgent)
	req.Header.Add("Accept-Charset", "utf-8")
	applyHeaders(req, s.Options.CustomHeaders)
	applyHeaders(req, spec.Headers)
	if s.Options.RandomAgent {
		req.Header.Set("User-Agent", uarand.GetRandom()) //nolint
	}
	for name, value := range spec.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func applyHeaders(req *retryablehttp.Request, headers map[string]string) {
	for name, value := range headers {
		switch strings.ToLower(name) {
		case "host":
			req.Host = value
		default:
			req.Header.Set(name, value)
		}
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

func withURL(args map[string]any, url string) map[string]any {
	merged := make(map[string]any, len(args)+1)
	for key, value := range args {
		merged[key] = value
	}
	merged["url"] = url
	return merged
}
