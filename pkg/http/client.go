package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPut    = http.MethodPut
	MethodDelete = http.MethodDelete
	MethodPatch  = http.MethodPatch
)

// ClientOption configures Client.
type ClientOption func(*Client)

// RequestOptions holds HTTP request parameters.
type RequestOptions struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string][]string
	Body        interface{}
}

// StatusError is returned for non-2xx responses. Body holds the raw payload
// so callers can decode API-specific error envelopes.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}

// Retryable reports whether a retry may succeed (throttling or server side).
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Client is an outbound JSON client with timeout, optional rate limiting and
// bounded retries for idempotent GET requests.
type Client struct {
	timeout      time.Duration
	limiter      *rate.Limiter
	maxRetries   uint64
	retryElapsed time.Duration
	client       *http.Client
}

// NewClient creates a new HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:      30 * time.Second,
		retryElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// WithTimeout sets client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

// WithRateLimit caps outgoing requests per second (burst = ceil(rps)).
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if float64(burst) < rps {
			burst++
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithGetRetries retries GET requests on transport errors and retryable
// statuses with exponential backoff.
func WithGetRetries(max uint64, maxElapsed time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		if maxElapsed > 0 {
			c.retryElapsed = maxElapsed
		}
	}
}

// WithHTTPClient replaces the underlying client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// SendAndParse sends the request and decodes a JSON response into dest.
// dest may be nil, *[]byte or io.Writer.
func (c *Client) SendAndParse(ctx context.Context, opts *RequestOptions, dest interface{}) error {
	body, err := c.send(ctx, opts)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	switch v := dest.(type) {
	case *[]byte:
		*v = body
	case io.Writer:
		if _, err := v.Write(body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	default:
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, opts *RequestOptions) ([]byte, error) {
	payload, err := encodeBody(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("create body: %w", err)
	}

	attempt := func() ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
			}
		}
		req, err := c.buildRequest(ctx, opts, payload)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			se := &StatusError{Code: resp.StatusCode, Body: body}
			if !se.Retryable() {
				return nil, backoff.Permanent(se)
			}
			return nil, se
		}
		return body, nil
	}

	if opts.Method != MethodGet || c.maxRetries == 0 {
		body, err := attempt()
		return body, unwrapPermanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = c.retryElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)
	body, err := backoff.RetryWithData(attempt, policy)
	return body, unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (c *Client) buildRequest(ctx context.Context, opts *RequestOptions, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return nil, err
	}
	if len(opts.QueryParams) > 0 {
		q := req.URL.Query()
		for key, values := range opts.QueryParams {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func encodeBody(body interface{}) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		return io.ReadAll(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return b, nil
	}
}

// JoinURL joins a base URL and a path without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
