// Package client provides the HTTP client shared by remote package sources,
// with retry, DNS caching, and per-host circuit breaking.
package client

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("not found")

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *HTTPError) Unwrap() error {
	if e.IsNotFound() {
		return ErrNotFound
	}
	return nil
}

// RateLimitError is returned when the feed rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// Client is an HTTP client with retry logic for package feeds.
type Client struct {
	hc         *http.Client
	userAgent  string
	maxRetries uint64
	baseDelay  time.Duration

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries. Zero disables
// retrying entirely; every request gets exactly one attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		hc: &http.Client{
			Timeout:   30 * time.Second,
			Transport: newCachingTransport(),
		},
		userAgent:  "nupkg/1.0",
		maxRetries: 5,
		baseDelay:  500 * time.Millisecond,
		breakers:   make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newCachingTransport builds a transport that resolves hosts through a
// refreshing DNS cache.
func newCachingTransport() *http.Transport {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
			}
			return nil, fmt.Errorf("failed to dial any resolved IP")
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// breaker returns or creates the circuit breaker for a host.
func (c *Client) breaker(host string) *circuit.Breaker {
	c.mu.RLock()
	b, ok := c.breakers[host]
	c.mu.RUnlock()
	if ok {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}

	// Trips after 5 consecutive failures, reopening on exponential backoff.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	c.breakers[host] = b
	return b
}

// GetJSON fetches url and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// GetXML fetches url and decodes the XML response into v.
func (c *Client) GetXML(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL, "application/atom+xml,application/xml")
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// Get fetches url with retries and returns the response body. 404 responses
// map to an HTTPError wrapping ErrNotFound and are not retried; 429 and 5xx
// responses are retried with exponential backoff.
func (c *Client) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	host := hostOf(rawURL)
	b := c.breaker(host)
	if !b.Ready() {
		return nil, fmt.Errorf("circuit breaker open for host %s", host)
	}

	var body []byte
	err := b.Call(func() error {
		var err error
		body, err = c.getWithRetry(ctx, rawURL, accept)
		return err
	}, 0)
	return body, err
}

func (c *Client) getWithRetry(ctx context.Context, rawURL, accept string) ([]byte, error) {
	// backoff.WithMaxRetries treats 0 as unlimited; here 0 means a single
	// attempt with no retry loop at all.
	if c.maxRetries == 0 {
		return c.doGet(ctx, rawURL, accept)
	}

	var body []byte

	op := func() error {
		var err error
		body, err = c.doGet(ctx, rawURL, accept)
		if err == nil {
			return nil
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			// Retry server errors; everything else is final.
			if httpErr.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.baseDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(resp.Body)

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 0
		if s := resp.Header.Get("Retry-After"); s != "" {
			fmt.Sscanf(s, "%d", &retryAfter)
		}
		return nil, &RateLimitError{RetryAfter: retryAfter}

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Body:       string(snippet),
		}
	}
}

// Download streams the body at url. The caller must close the reader.
// Downloads bypass retry buffering since archives can be large.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	host := hostOf(rawURL)
	if !c.breaker(host).Ready() {
		return nil, fmt.Errorf("circuit breaker open for host %s", host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		c.breaker(host).Fail()
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		c.breaker(host).Fail()
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}
	c.breaker(host).Success()
	return resp.Body, nil
}

// BreakerStates returns the current circuit breaker state per host.
func (c *Client) BreakerStates() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]string, len(c.breakers))
	for host, b := range c.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
