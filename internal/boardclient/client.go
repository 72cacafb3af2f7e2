// Package boardclient is a fasthttp client for the boardd HTTP API.
package boardclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/park285/cheese-board/pkg/boarddto"
	"github.com/valyala/fasthttp"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithDial replaces the transport dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/healthz", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Clock(ctx context.Context) (*boarddto.ClockState, error) {
	var out boarddto.ClockState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/clock", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context) (*boarddto.BoardStatus, error) {
	var out boarddto.BoardStatus
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/board", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Moves(ctx context.Context) ([]boarddto.Move, error) {
	var out []boarddto.Move
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/moves", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StartClock(ctx context.Context) (*boarddto.ClockState, error) {
	var out boarddto.ClockState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/clock/start", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PauseClock(ctx context.Context) (*boarddto.ClockState, error) {
	var out boarddto.ClockState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/clock/pause", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewGame resets the board and returns the new game ID.
func (c *Client) NewGame(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/board/reset", nil, &out, false); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// SendFrames posts a batch of sensor frames and returns the detector status
// after the batch was processed. Never retried: frames are not idempotent.
func (c *Client) SendFrames(ctx context.Context, frames []boarddto.SensorFrame) (*boarddto.BoardStatus, error) {
	var out struct {
		Accepted int                  `json:"accepted"`
		Status   boarddto.BoardStatus `json:"status"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/events", frames, &out, false); err != nil {
		return nil, err
	}
	return &out.Status, nil
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   boarddto.Error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("boardd api error: status=%d code=%s message=%s", e.Status, e.Body.Code, truncate(e.Body.Message, 256))
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				if out != nil {
					if err := json.Unmarshal(resp.Body(), out); err != nil {
						return fmt.Errorf("decode response: %w", err)
					}
				}
				return nil
			}
			apiErr := &APIError{Status: status}
			if jerr := json.Unmarshal(resp.Body(), &apiErr.Body); jerr != nil {
				apiErr.Body.Message = string(resp.Body())
			}
			if !shouldRetryStatus(status) {
				return apiErr
			}
			err = apiErr
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return fmt.Errorf("request %s %s failed: %w", method, path, lastErr)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
