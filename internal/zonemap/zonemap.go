// Package zonemap resolves internal zone codes to human-readable names
// using a mapping document fetched from a remote source.
package zonemap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 3
	maxBodyBytes   = 4 << 20
)

// ErrNoSource is wrapped by FetchError when no mapping URL is configured.
var ErrNoSource = errors.New("no zone mapping source configured")

// FetchError reports a failed mapping fetch.
// StatusCode is zero for transport and decode failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error

	retryAfter string // Retry-After header value for 429s
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch zone mapping %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch zone mapping %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithRetries sets how many times a 429 or 5xx response is retried. Default: 3.
func WithRetries(n int) Option {
	return func(r *Resolver) { r.retries = n }
}

// WithBackoff sets the base retry delay, doubled on each attempt. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(r *Resolver) { r.backoff = d }
}

// WithLogger sets the slog logger. If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// Resolver translates zone codes into display names.
//
// The mapping is an immutable map swapped in atomically on each successful
// Refresh, so Resolve never observes a partially built mapping.
type Resolver struct {
	url     string
	client  *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
	logger  *slog.Logger

	mapping atomic.Pointer[map[string]string]
	loaded  atomic.Bool
}

// New returns a Resolver that fetches its mapping from url.
// The mapping is empty until Refresh succeeds.
func New(url string, opts ...Option) *Resolver {
	r := &Resolver{
		url:     url,
		timeout: defaultTimeout,
		retries: defaultRetries,
		backoff: time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: r.timeout}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	empty := map[string]string{}
	r.mapping.Store(&empty)
	return r
}

// NewStatic returns a Resolver preloaded with mapping and no remote source.
func NewStatic(mapping map[string]string) *Resolver {
	r := New("")
	r.Replace(mapping)
	return r
}

// URL returns the configured mapping source.
func (r *Resolver) URL() string {
	return r.url
}

// Refresh fetches the mapping document once and swaps it in.
// On failure the previous mapping is kept and a *FetchError is returned.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.url == "" {
		return &FetchError{Err: ErrNoSource}
	}

	m, err := r.fetch(ctx)
	if err != nil {
		r.logger.Warn("zone mapping fetch failed", "url", r.url, "error", err)
		return err
	}
	r.Replace(m)
	r.logger.Debug("zone mapping loaded", "url", r.url, "zones", len(m))
	return nil
}

// Replace swaps in a copy of mapping and marks the resolver loaded.
func (r *Resolver) Replace(mapping map[string]string) {
	m := maps.Clone(mapping)
	if m == nil {
		m = map[string]string{}
	}
	r.mapping.Store(&m)
	r.loaded.Store(true)
}

// Resolve returns the display name for code, or code itself when unmapped.
func (r *Resolver) Resolve(code string) string {
	if code == "" {
		return code
	}
	m := *r.mapping.Load()
	if name, ok := m[code]; ok && name != "" {
		return name
	}
	return code
}

// Loaded reports whether a mapping has ever been installed.
func (r *Resolver) Loaded() bool {
	return r.loaded.Load()
}

// Len returns the number of mapped zone codes.
func (r *Resolver) Len() int {
	return len(*r.mapping.Load())
}

// Snapshot returns a copy of the current mapping.
func (r *Resolver) Snapshot() map[string]string {
	return maps.Clone(*r.mapping.Load())
}

func (r *Resolver) fetch(ctx context.Context) (map[string]string, error) {
	var lastErr *FetchError
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			wait := r.backoffDelay(attempt, lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, &FetchError{URL: r.url, Err: ctx.Err()}
			case <-t.C:
			}
		}

		body, status, retryAfter, err := r.get(ctx)
		if err != nil {
			return nil, &FetchError{URL: r.url, Err: err}
		}

		if status >= 200 && status < 300 {
			m, err := decode(body)
			if err != nil {
				return nil, &FetchError{URL: r.url, Err: err}
			}
			return m, nil
		}

		lastErr = &FetchError{
			URL:        r.url,
			StatusCode: status,
			Err:        fmt.Errorf("unexpected status %s", http.StatusText(status)),
		}
		if status == http.StatusTooManyRequests {
			lastErr.retryAfter = retryAfter
			continue
		}
		if status >= 500 {
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

func (r *Resolver) get(ctx context.Context) ([]byte, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, 0, "", err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.5")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, "", err
	}
	return body, resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

// backoffDelay returns the wait duration before a retry attempt.
func (r *Resolver) backoffDelay(attempt int, lastErr *FetchError) time.Duration {
	if lastErr != nil && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return r.backoff * time.Duration(1<<(attempt-1))
}

// decode parses a flat code -> name document. YAML is a superset of JSON,
// so both encodings are accepted.
func decode(body []byte) (map[string]string, error) {
	var m map[string]string
	if err := yaml.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	if m == nil {
		return nil, errors.New("decode mapping: empty document")
	}
	return m, nil
}
