package session

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	// DefaultUserAgent is sent when no custom or random agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"
	// DefaultBurpProxy is where Burp switches traffic to unless overridden.
	DefaultBurpProxy = "http://127.0.0.1:8080"

	burpProxyEnv = "TEN_BURP_PROXY"
)

// Options contains configuration options for a session
type Options struct {
	// Timeout applies to every request unless overridden per request, 0
	// for no timeout
	Timeout time.Duration
	// RetryMax is the maximum number of retries
	RetryMax int
	// MaxConnections is the number of idle connections kept per host
	MaxConnections int
	// VerifyTLS enables certificate verification, off for probing
	VerifyTLS bool
	// FollowRedirects makes the session follow redirect chains
	FollowRedirects bool
	// MaxRedirects caps a followed redirect chain
	MaxRedirects int
	// RawURLs sends URLs exactly as given, skipping normalization
	RawURLs bool
	// Proxy routes requests through an http or socks5 proxy URL
	Proxy string
	// BurpProxy is the intercept proxy Burp switches to
	BurpProxy string
	// CustomHeaders are added to every request
	CustomHeaders map[string]string
	// DefaultUserAgent overrides the stock User-Agent
	DefaultUserAgent string
	// RandomAgent picks a random User-Agent per request
	RandomAgent bool
	// HTTP2 switches the session to an HTTP/2 client
	HTTP2 bool
	// MaxResponseBodySize caps how many body bytes are read
	MaxResponseBodySize int64
}

// DefaultOptions contains the default configuration options for a session
var DefaultOptions = Options{
	MaxConnections:      10,
	MaxRedirects:        10,
	RawURLs:             true,
	DefaultUserAgent:    DefaultUserAgent,
	MaxResponseBodySize: math.MaxInt32,
}

func (options *Options) fillDefaults() {
	if options.MaxConnections == 0 {
		options.MaxConnections = DefaultOptions.MaxConnections
	}
	if options.MaxRedirects == 0 {
		options.MaxRedirects = DefaultOptions.MaxRedirects
	}
	if options.DefaultUserAgent == "" {
		options.DefaultUserAgent = DefaultOptions.DefaultUserAgent
	}
	if options.MaxResponseBodySize == 0 {
		options.MaxResponseBodySize = DefaultOptions.MaxResponseBodySize
	}
	if options.BurpProxy == "" {
		options.BurpProxy = DefaultBurpProxy
		if fromEnv := os.Getenv(burpProxyEnv); fromEnv != "" {
			options.BurpProxy = fromEnv
		}
	}
}

func (options *Options) validate() error {
	var err error
	if options.RetryMax < 0 {
		err = multierr.Append(err, errors.Errorf("invalid retry count: %d", options.RetryMax))
	}
	if options.MaxConnections < 0 {
		err = multierr.Append(err, errors.Errorf("invalid connection count: %d", options.MaxConnections))
	}
	if options.MaxRedirects < 0 {
		err = multierr.Append(err, errors.Errorf("invalid redirect count: %d", options.MaxRedirects))
	}
	if options.HTTP2 && options.Proxy != "" {
		err = multierr.Append(err, errors.New("proxies are not supported with the http2 client"))
	}
	return err
}
