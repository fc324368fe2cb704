package mailapi

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
	"time"

	"github.com/sony/gobreaker"

	"github.com/inbox-voice-lab/internal/logging"
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	AuthToken string
	CSRFToken string
	// Timeout is the per-request ceiling of the underlying http.Client.
	// Callers may impose tighter deadlines through the context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the webmail assistant backend. Every endpoint lives under
// the /api/ prefix. Requests are never retried.
type Client struct {
	BaseURL   string
	AuthToken string
	CSRFToken string
	HTTP      *http.Client

	breaker *gobreaker.CircuitBreaker
}

// errServerStatus marks 5xx responses as failures for the breaker while the
// response itself is still inspected.
var errServerStatus = errors.New("server error status")

type rawResponse struct {
	status int
	body   []byte
}

// New returns a Client for opts.BaseURL.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		BaseURL:   strings.TrimRight(opts.BaseURL, "/"),
		AuthToken: opts.AuthToken,
		CSRFToken: opts.CSRFToken,
		HTTP:      hc,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "mail-api",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warnw("mailapi: circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// do sends one request and decodes a successful body into out. The error
// classification is the contract callers rely on: ErrTimeout, ErrNetwork,
// *StatusError, *BackendError or ErrMalformed.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}
	if c.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", c.CSRFToken)
	}

	sent := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return nil, rerr
		}
		raw := &rawResponse{status: resp.StatusCode, body: b}
		if resp.StatusCode >= 500 {
			return raw, errServerStatus
		}
		return raw, nil
	})
	latencyMs := time.Since(sent).Milliseconds()

	if err != nil && !errors.Is(err, errServerStatus) {
		logging.DebugwCtx(ctx, "mailapi: request failed", "method", method, "path", path, "err", err, "latency_ms", latencyMs)
		return classifyTransport(ctx, err)
	}
	raw := result.(*rawResponse)
	logging.DebugwCtx(ctx, "mailapi: response received", "method", method, "path", path, "status", raw.status, "latency_ms", latencyMs, "body_len", len(raw.body))

	var env envelope
	envErr := json.Unmarshal(raw.body, &env)

	if raw.status < 200 || raw.status >= 300 {
		if envErr == nil && !env.OK && env.Error != "" {
			return &BackendError{Status: raw.status, Message: env.Error}
		}
		return &StatusError{Status: raw.status, Body: truncate(strings.TrimSpace(string(raw.body)), 512)}
	}
	if envErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, envErr)
	}
	if !env.OK {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return &BackendError{Status: raw.status, Message: msg}
	}
	if out != nil {
		if err := json.Unmarshal(raw.body, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: backend circuit open: %w", ErrNetwork, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
