// Package httpclient is a GET-only HTTP client over an injectable fetch capability.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single Get when no timeout is configured.
	DefaultTimeout = 10000 * time.Millisecond

	// MPEGURLContentType is the Accept value used for manifest fetches.
	MPEGURLContentType = "application/vnd.apple.mpegurl"
)

// ErrNoBaseURL is returned by Get before Configure set a base URL.
var ErrNoBaseURL = errors.New("httpclient: no base URL configured")

// BodyMode selects how Get returns the response body.
type BodyMode int

const (
	// BodyText fills Response.Text.
	BodyText BodyMode = iota
	// BodyBytes fills Response.Bytes with the buffer read from the transport.
	BodyBytes
)

// Request is a GET request handed to a Fetcher. It never carries a body.
type Request struct {
	URL    string
	Header http.Header
}

// Response is the structured result of a fetch.
type Response struct {
	StatusCode int
	StatusText string
	Header     http.Header

	// Text is set for BodyText
	Text string

	// Bytes is set for BodyBytes, and always by a Fetcher
	Bytes []byte
}

// Fetcher performs a single GET. It returns an error only for failures below
// HTTP semantics; any status code is reported in the Response.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// NetworkError is a response outside the 2xx range.
type NetworkError struct {
	URL        string
	StatusCode int
	StatusText string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.StatusText)
}

// TransportError is a connection-level failure, including the per-call timeout.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client issues GET requests against one configured URL.
type Client struct {
	fetcher Fetcher
	baseURL string
	header  http.Header
	timeout time.Duration
}

// New creates a client on top of the given fetch capability.
// A nil fetcher selects the net/http based HTTPFetcher.
func New(fetcher Fetcher) *Client {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil)
	}
	return &Client{
		fetcher: fetcher,
		timeout: DefaultTimeout,
	}
}

// Configure sets the request URL, the headers sent with every request and
// the per-call timeout. A non-positive timeout selects DefaultTimeout.
func (c *Client) Configure(baseURL string, header http.Header, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.baseURL = baseURL
	c.header = header.Clone()
	c.timeout = timeout
}

// BaseURL returns the configured request URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches the configured URL. No retry is performed here.
func (c *Client) Get(ctx context.Context, mode BodyMode) (*Response, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	header := c.header.Clone()
	if header == nil {
		header = http.Header{}
	}

	resp, err := c.fetcher.Fetch(callCtx, &Request{URL: c.baseURL, Header: header})
	if err != nil {
		// Caller cancellation is not a transport failure
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{URL: c.baseURL, Err: err}
	}

	// The transport is not trusted to reject error statuses
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusText := resp.StatusText
		if statusText == "" {
			statusText = http.StatusText(resp.StatusCode)
		}
		return nil, &NetworkError{
			URL:        c.baseURL,
			StatusCode: resp.StatusCode,
			StatusText: statusText,
		}
	}

	if mode == BodyText {
		resp.Text = string(resp.Bytes)
		resp.Bytes = nil
	}

	return resp, nil
}
