// Package fetch performs the external lookup call with bounded retry and
// exponential backoff. One shared HTTP client (and connection pool) covers
// every attempt and every command, so the per-attempt timeout is scoped to
// the client session rather than re-dialed per try.
//
// Retry policy: transport-level errors retry with backoff; a non-200 status
// does not retry by default and short-circuits to the failure sentinel.
// Callers that want selected status classes back in the retry loop opt in
// via Options.RetryStatus.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrUpstream is the sentinel returned when every attempt fails. It is
// distinguishable from a legitimate upstream error body, which is returned
// as a payload, not an error.
var ErrUpstream = errors.New("upstream request failed")

var fetchAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_fetch_attempts_total",
		Help: "External fetch attempts by outcome.",
	},
	[]string{"outcome"}, // ok | transport_error | bad_status
)

func init() {
	prometheus.MustRegister(fetchAttempts)
}

// Options configures a Client. Zero values get production defaults.
type Options struct {
	// Retries is the maximum number of attempts (default 3).
	Retries int
	// Timeout bounds each attempt on the shared client (default 30s).
	Timeout time.Duration
	// Backoff is the base sleep; attempt n sleeps Backoff * 2^n (default 1s).
	Backoff time.Duration
	// RetryStatus, when set, reports whether a non-200 status should be
	// retried instead of failing fast.
	RetryStatus func(code int) bool
	// Transport overrides the HTTP transport, used in tests.
	Transport http.RoundTripper
}

// Client fetches lookup payloads. Safe for concurrent use.
type Client struct {
	http        *http.Client
	retries     int
	base        time.Duration
	retryStatus func(int) bool

	// sleep is a seam for tests; the default honors context cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a Client with the given options.
func New(opts Options) *Client {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.Transport != nil {
		hc.Transport = opts.Transport
	}
	return &Client{
		http:        hc,
		retries:     opts.Retries,
		base:        opts.Backoff,
		retryStatus: opts.RetryStatus,
		sleep:       sleepCtx,
	}
}

// Fetch GETs the URL and decodes the body. A JSON body is returned as the
// decoded value; a non-JSON body is wrapped as {"response": <raw text>}.
// When every attempt fails it returns (nil, ErrUpstream).
func (c *Client) Fetch(ctx context.Context, url string) (any, error) {
	b := &backoff.Backoff{Min: c.base, Max: c.base << 6, Factor: 2, Jitter: false}

	for attempt := 0; attempt < c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, ErrUpstream
		}
		resp, err := c.http.Do(req)
		if err != nil {
			fetchAttempts.WithLabelValues("transport_error").Inc()
			if serr := c.sleep(ctx, b.Duration()); serr != nil {
				return nil, ErrUpstream
			}
			continue
		}
		body, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if rerr != nil {
			fetchAttempts.WithLabelValues("transport_error").Inc()
			if serr := c.sleep(ctx, b.Duration()); serr != nil {
				return nil, ErrUpstream
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			fetchAttempts.WithLabelValues("bad_status").Inc()
			if c.retryStatus != nil && c.retryStatus(resp.StatusCode) {
				if serr := c.sleep(ctx, b.Duration()); serr != nil {
					return nil, ErrUpstream
				}
				continue
			}
			// Non-retryable status fails fast: no result, no further attempts.
			return nil, ErrUpstream
		}
		fetchAttempts.WithLabelValues("ok").Inc()
		return Decode(body), nil
	}
	return nil, ErrUpstream
}

// Decode interprets an upstream body: valid JSON is returned decoded, any
// other text is wrapped under a "response" key.
func Decode(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return map[string]any{"response": string(body)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
