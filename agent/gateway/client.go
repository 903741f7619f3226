package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/drivethru-sim/agent/contract"
	orderx "github.com/tanpawarit/drivethru-sim/agent/order"
)

const maxResponseSizeBytes = 2 << 20

var _ contractx.Gateway = (*Client)(nil)

// StatusError is a non-2xx answer from the remote agent.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote agent status=%d body=%s", e.Code, e.Body)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// Client talks to the remote order-taking agent.
type Client struct {
	baseURL    string
	token      string
	location   string
	httpClient *http.Client
	policy     Policy
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.APIBaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid api base url: %v", contractx.ErrValidation, err)
	}

	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, fmt.Errorf("%w: lilac api token is required", contractx.ErrValidation)
	}

	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = DefaultLocation
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		location: location,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		policy: cfg.Policy(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func MustNew(cfg Config, opts ...Option) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

type startRequest struct {
	Location string `json:"location"`
}

type startResponse struct {
	OrderID string `json:"orderId"`
}

type chatRequest struct {
	OrderID  string `json:"orderId"`
	Input    string `json:"input"`
	Location string `json:"location"`
}

type orderResponse struct {
	Order []orderx.Item `json:"order"`
}

// Start opens a new order session and returns its id.
func (c *Client) Start(ctx context.Context) (string, error) {
	var out startResponse
	if err := c.do(ctx, http.MethodPost, "/start", startRequest{Location: c.location}, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.OrderID) == "" {
		return "", fmt.Errorf("%w: start returned an empty orderId", contractx.ErrGateway)
	}
	return out.OrderID, nil
}

// Chat waits out the turn delay, then sends one customer utterance.
func (c *Client) Chat(ctx context.Context, orderID, input string) (contractx.ChatReply, error) {
	if strings.TrimSpace(orderID) == "" {
		return contractx.ChatReply{}, fmt.Errorf("%w: order id is required", contractx.ErrValidation)
	}
	if err := sleep(ctx, c.policy.TurnDelay); err != nil {
		return contractx.ChatReply{}, err
	}

	var out contractx.ChatReply
	req := chatRequest{OrderID: orderID, Input: input, Location: c.location}
	if err := c.do(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return contractx.ChatReply{}, err
	}
	return out, nil
}

// Order fetches the agent's current order snapshot.
func (c *Client) Order(ctx context.Context, orderID string) ([]orderx.Item, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", contractx.ErrValidation)
	}
	var out orderResponse
	if err := c.do(ctx, http.MethodGet, "/order/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	if out.Order == nil {
		out.Order = []orderx.Item{}
	}
	return out.Order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshal %s body: %v", contractx.ErrGateway, path, err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		raw, err := c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", path, err))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("remote agent call failed, retrying")
	}

	if err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify); err != nil {
		return fmt.Errorf("%w: %s %s after %d attempt(s): %w", contractx.ErrGateway, method, path, attempt, err)
	}
	return nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if c.policy.InitialBackoff > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = c.policy.InitialBackoff
		exp.RandomizationFactor = 0
		exp.Multiplier = c.policy.Multiplier
		if exp.Multiplier < 1 {
			exp.Multiplier = 2
		}
		if c.policy.MaxBackoff > 0 {
			exp.MaxInterval = c.policy.MaxBackoff
		}
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	}
	retries := c.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// send performs one HTTP attempt. Transport errors and retryable statuses
// come back as plain errors; everything else is permanent.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("x-api-key", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		if c.policy.retryable(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}
	return raw, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
