package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second

	defaultMaxConns = 100
)

// FailureError is the error attached to a RequestEvent reported through Response.Failure
type FailureError struct {
	Reason string
}

func (e *FailureError) Error() string {
	return e.Reason
}

// Request describes one HTTP call made by a simulated user
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any    // Encoded as the request body when non-nil
	Name   string // Stats grouping name; defaults to Path
}

// Response is the outcome of Client.Do. It must be reported exactly once with
// Success or Failure; later calls are ignored.
type Response struct {
	StatusCode   int
	Body         []byte
	Err          error // Transport error; StatusCode is 0 when set
	ResponseTime time.Duration

	method    string
	name      string
	timestamp time.Time
	cancelled bool
	reported  atomic.Bool
	report    func(RequestEvent)
}

// Cancelled reports whether the run context ended while the request was in flight.
// Cancelled responses are never counted.
func (r *Response) Cancelled() bool {
	return r.cancelled
}

// DecodeJSON unmarshals the response body into v
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Success reports the request as successful
func (r *Response) Success() {
	r.emit(nil)
}

// Failure reports the request as failed with the given reason
func (r *Response) Failure(reason string) {
	r.emit(&FailureError{Reason: reason})
}

func (r *Response) emit(err error) {
	if r.cancelled || r.report == nil || !r.reported.CompareAndSwap(false, true) {
		return
	}
	r.report(RequestEvent{
		Method:         r.method,
		Name:           r.name,
		StatusCode:     r.StatusCode,
		ResponseTime:   r.ResponseTime,
		ResponseLength: int64(len(r.Body)),
		Err:            err,
		Timestamp:      r.timestamp,
	})
}

// Client issues requests against one host and hands results to the aggregator
type Client struct {
	host       string
	httpClient *http.Client
	headers    map[string]string
	report     func(RequestEvent)
}

// NewClient creates a client bound to host. report receives every reported request.
func NewClient(host string, httpClient *http.Client, report func(RequestEvent)) *Client {
	if httpClient == nil {
		httpClient = buildLoadTestHTTPClient(DefaultRequestTimeout, defaultMaxConns)
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: httpClient,
		headers: map[string]string{
			"Accept": "application/json",
		},
		report: report,
	}
}

// Host returns the base URL requests are sent to
func (c *Client) Host() string {
	return c.host
}

// Do executes the request. It never returns nil; transport failures land in Response.Err.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	name := req.Name
	if name == "" {
		name = req.Path
	}
	resp := &Response{
		method: req.Method,
		name:   name,
		report: c.report,
	}

	target := c.host + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var bodyReader io.Reader
	if req.JSON != nil {
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			resp.Err = fmt.Errorf("failed to encode request body: %w", err)
			resp.timestamp = time.Now()
			return resp
		}
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bodyReader)
	if err != nil {
		resp.Err = fmt.Errorf("failed to create request: %w", err)
		resp.timestamp = time.Now()
		return resp
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	if req.JSON != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		resp.ResponseTime = time.Since(start)
		resp.timestamp = time.Now()
		resp.Err = err
		resp.cancelled = ctx.Err() != nil
		return resp
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	resp.ResponseTime = time.Since(start)
	resp.timestamp = time.Now()
	resp.StatusCode = httpResp.StatusCode
	resp.Body = body
	if err != nil {
		resp.Err = fmt.Errorf("failed to read response body: %w", err)
		resp.cancelled = ctx.Err() != nil
	}
	return resp
}

// buildLoadTestHTTPClient creates an HTTP client tuned for many concurrent users
// sharing one connection pool
func buildLoadTestHTTPClient(timeout time.Duration, maxConns int) *http.Client {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	transport := &http.Transport{
		MaxIdleConns:        maxConns,
		MaxIdleConnsPerHost: maxConns,
		MaxConnsPerHost:     maxConns * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
