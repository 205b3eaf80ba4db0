// Package api wraps authenticated HTTP calls to the hiddensweep backend:
// JSON encoding, bearer injection, per-call timeouts, retry on transient
// failures, and a uniform error taxonomy. A 401 anywhere fires a single
// registered unauthorized hook so forced logout stays centralized.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hiddensweep/hiddensweep/pkg/logging"
	"github.com/hiddensweep/hiddensweep/pkg/metrics"
	"github.com/hiddensweep/hiddensweep/pkg/protocol"
	"github.com/hiddensweep/hiddensweep/pkg/retry"
)

// Notifier surfaces call failures to the user. Matched by *notify.Store.
type Notifier interface {
	Error(message string) string
	Warning(message string) string
}

// TokenSource supplies the current bearer token, or "" when logged out.
type TokenSource func() string

// Client is the authenticated call wrapper.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	timeout      time.Duration
	retryConfig  retry.Config

	mu             sync.RWMutex
	tokenSource    TokenSource
	notifier       Notifier
	onUnauthorized func()
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	// The stream client carries no overall timeout: a scan may run for
	// minutes. Only the connect and response-header phases are bounded.
	streamTransport := transport.Clone()
	streamTransport.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Transport: transport},
		streamClient: &http.Client{Transport: streamTransport},
		timeout:      cfg.Timeout,
		retryConfig:  cfg.RetryConfig,
	}
}

// SetTokenSource registers the bearer token supplier (the session store).
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = ts
}

// SetNotifier registers the notification sink for call failures.
func (c *Client) SetNotifier(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier = n
}

// OnUnauthorized registers the hook fired when any authenticated call
// receives a 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

type callOptions struct {
	timeout  time.Duration
	noNotify bool
	noAuth   bool
	headers  http.Header
}

// CallOption customizes a single call.
type CallOption func(*callOptions)

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithoutNotify suppresses the failure notification for this call.
func WithoutNotify() CallOption {
	return func(o *callOptions) { o.noNotify = true }
}

// WithoutAuth skips the bearer header and the 401 hook. Used for public
// endpoints (login, register) where a 401 means bad credentials, not an
// expired session.
func WithoutAuth() CallOption {
	return func(o *callOptions) { o.noAuth = true }
}

// WithHeader adds a request header.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		o.headers.Set(key, value)
	}
}

// Call issues a JSON request and decodes a 2xx response into out (when
// out is non-nil). It never panics across its boundary; every failure is
// a taxonomy error. 5xx responses and connection failures are retried
// per the retry config; 4xx, timeouts, and cancellations are not.
func (c *Client) Call(ctx context.Context, method, path string, body, out any, opts ...CallOption) error {
	o := callOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&o)
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = data
	}

	err := retry.Do(ctx, c.retryConfig, func() error {
		return c.doOnce(ctx, method, path, payload, out, &o)
	})
	if err != nil {
		metrics.RecordRequestError(Kind(err))
		logging.Debug("api call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("kind", Kind(err)),
			zap.Error(err))
		if n := c.currentNotifier(); n != nil && !o.noNotify {
			n.Error(err.Error())
		}
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any, o *callOptions) error {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range o.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if !o.noAuth {
		c.applyAuth(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := classifyTransport(ctx, err)
		var ne *NetworkError
		if errors.As(terr, &ne) {
			return retry.Retryable(terr)
		}
		return terr
	}
	defer resp.Body.Close()

	metrics.RecordRequest(method, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized && !o.noAuth {
		c.fireUnauthorized()
		return &AuthError{}
	}
	if resp.StatusCode >= 500 {
		return retry.Retryable(c.serverError(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.serverError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// Stream issues a request whose response body is consumed incrementally
// by the caller. No retry and no body-read timeout; the connect phase is
// bounded by the transport. Status handling matches Call, including the
// 401 hook. The caller must close the returned body.
func (c *Client) Stream(ctx context.Context, method, path string, body any) (io.ReadCloser, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		terr := classifyTransport(ctx, err)
		metrics.RecordRequestError(Kind(terr))
		return nil, terr
	}

	metrics.RecordRequest(method, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.fireUnauthorized()
		return nil, &AuthError{}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.serverError(resp)
	}

	return resp.Body, nil
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	ts := c.tokenSource
	c.mu.RUnlock()
	if ts == nil {
		return
	}
	if token := ts(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) currentNotifier() Notifier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifier
}

func (c *Client) fireUnauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// serverError reads a non-2xx body and extracts its error/message field,
// falling back to a status-derived message when the body is not JSON.
func (c *Client) serverError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var er protocol.ErrorResponse
	if json.Unmarshal(data, &er) == nil {
		if er.Message != "" {
			return &ServerError{Status: resp.StatusCode, Message: er.Message}
		}
		if er.Error != "" {
			return &ServerError{Status: resp.StatusCode, Message: er.Error}
		}
	}
	return &ServerError{Status: resp.StatusCode}
}

// classifyTransport maps a transport-level failure onto the taxonomy.
// A cancellation of the caller's own context passes through untouched so
// callers can distinguish user-initiated aborts from timeouts.
func classifyTransport(callerCtx context.Context, err error) error {
	if errors.Is(callerCtx.Err(), context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{}
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return &NetworkError{Err: err}
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return &NetworkError{Err: err}
	}
	return err
}
