package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var _ Provider = (*Client)(nil)

const (
	// maxResponse caps how much of a response body is read.
	maxResponse = 4 << 20
	// maxErrorBody caps how much of a failed body is kept on StatusError.
	maxErrorBody = 512
)

// API describes one vendor's completion endpoint.
type API struct {
	Name    string
	URL     string
	Model   string
	Key     string
	Keyless bool // local servers such as ollama

	// Auth sets credentials on an outgoing request. Headers are static
	// extras such as anthropic-version.
	Auth    func(h http.Header, key string)
	Headers map[string]string

	Encode func(model string, req Request) any
	Decode func(body []byte) (Response, error)
}

// StatusError reports a non-2xx reply.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Code, e.Body)
}

// Client is a rate-limited Provider for an API.
type Client struct {
	api     API
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient returns a Client that waits minInterval between requests
// (zero for no limit) and gives up on a request after timeout.
func NewClient(api API, minInterval, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	every := rate.Inf
	if minInterval > 0 {
		every = rate.Every(minInterval)
	}
	return &Client{
		api:     api,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(every, 1),
	}
}

func (c *Client) Name() string  { return c.api.Name }
func (c *Client) Model() string { return c.api.Model }

func (c *Client) Available() bool {
	if c.api.Keyless {
		return c.api.Model != ""
	}
	return c.api.Key != ""
}

func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if !c.Available() {
		return Response{}, fmt.Errorf("%s is not configured", c.api.Name)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(c.api.Encode(c.api.Model, req)); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api.URL, &body)
	if err != nil {
		return Response{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.api.Auth != nil && c.api.Key != "" {
		c.api.Auth(hreq.Header, c.api.Key)
	}
	for k, v := range c.api.Headers {
		hreq.Header.Set(k, v)
	}

	resp, err := c.http.Do(hreq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return Response{}, &StatusError{Provider: c.api.Name, Code: resp.StatusCode, Body: string(data[:min(len(data), maxErrorBody)])}
	}

	out, err := c.api.Decode(data)
	if err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Content == "" {
		return Response{}, errors.New("empty completion")
	}
	if out.Model == "" {
		out.Model = c.api.Model
	}
	return out, nil
}
