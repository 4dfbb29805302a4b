// Package api provides the REST client for the remote skillsync backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/asteroid-belt/skillsync/internal/models"
)

const (
	// DefaultTimeout bounds regular API calls.
	DefaultTimeout = 30 * time.Second

	// ProbeTimeout bounds health probes; a probe slower than this counts
	// as unreachable.
	ProbeTimeout = 5 * time.Second

	// DefaultRateLimit is requests per minute against the backend.
	DefaultRateLimit = 120
)

// Config holds client configuration.
type Config struct {
	BaseURL   string
	Token     string // bearer token, optional
	Timeout   time.Duration
	RateLimit int // requests per minute, 0 = default
}

// Client talks to the remote REST API. All methods are safe for concurrent
// use.
type Client struct {
	baseURL string
	http    *http.Client
	probe   *http.Client
	limiter *rate.Limiter
}

// New creates a new API client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rl := cfg.RateLimit
	if rl <= 0 {
		rl = DefaultRateLimit
	}

	var transport http.RoundTripper
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
		}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		probe:   &http.Client{Timeout: ProbeTimeout, Transport: transport},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl)), 10),
	}
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Body)
}

// Transient reports whether the request is worth retrying.
func (e *Error) Transient() bool {
	return e.Status == http.StatusRequestTimeout ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= 500
}

// Transient reports whether an error from any client method may succeed on
// retry. Network-level failures are always considered transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*Error); ok {
		return apiErr.Transient()
	}
	// Timeouts, refused connections, DNS failures.
	return true
}

// BatchItem is one entry of a batched partial update.
type BatchItem struct {
	ID   string       `json:"id"`
	Data models.Patch `json:"data"`
}

// List fetches all records of a collection as raw JSON. Callers decode into
// their typed slice.
func (c *Client) List(ctx context.Context, collection models.Collection) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/"+collection.String(), nil, &raw); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return raw, nil
}

// Create posts a new record and decodes the server's copy (with its
// assigned id) into dest.
func (c *Client) Create(ctx context.Context, collection models.Collection, body, dest any) error {
	if err := c.do(ctx, http.MethodPost, "/"+collection.String(), body, dest); err != nil {
		return fmt.Errorf("create %s: %w", collection, err)
	}
	return nil
}

// Patch applies a partial update to one record.
func (c *Client) Patch(ctx context.Context, collection models.Collection, id string, data models.Patch) error {
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/%s/%s", collection, id), data, nil); err != nil {
		return fmt.Errorf("patch %s/%s: %w", collection, id, err)
	}
	return nil
}

// PatchBatch applies partial updates to several records of one collection
// in a single round-trip.
func (c *Client) PatchBatch(ctx context.Context, collection models.Collection, items []BatchItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/%s/batch", collection), items, nil); err != nil {
		return fmt.Errorf("patch batch %s: %w", collection, err)
	}
	return nil
}

// Delete removes one record.
func (c *Client) Delete(ctx context.Context, collection models.Collection, id string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/%s/%s", collection, id), nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Health probes the backend liveness endpoint and returns the round-trip
// latency. The probe is bounded by ProbeTimeout and bypasses the rate
// limiter so a saturated limiter cannot masquerade as a slow backend.
func (c *Client) Health(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return 0, fmt.Errorf("health: %w", err)
	}

	start := time.Now()
	resp, err := c.probe.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, fmt.Errorf("health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return latency, &Error{Status: resp.StatusCode, Body: "health check failed"}
	}
	return latency, nil
}

// do performs one JSON request/response cycle.
func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
