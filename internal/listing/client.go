package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

// FetchError wraps any failure to retrieve a page.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

type ClientOptions struct {
	Timeout           time.Duration
	Attempts          uint
	Delay             time.Duration
	Multiplier        float64
	RequestsPerSecond float64
	UserAgent         string
	// OnRetry is called before each retry with the attempt that just failed.
	OnRetry func(url string, attempt uint, err error)
}

// Client is a polite HTTP getter: rate limited, with exponential backoff.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	opts      ClientOptions
	maxBodyMB int64
}

func NewClient(opts ClientOptions) *Client {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(limit, 1),
		opts:      opts,
		maxBodyMB: 10,
	}
}

func (c *Client) backoff(n uint, _ error, _ *retry.Config) time.Duration {
	return time.Duration(float64(c.opts.Delay) * math.Pow(c.opts.Multiplier, float64(n)))
}

// Get returns the body of url, retrying transient failures. Client errors
// other than 429 are not retried.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := c.get(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.Delay),
		retry.DelayType(c.backoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if c.opts.OnRetry != nil {
				c.opts.OnRetry(url, n+1, err)
			}
		}),
	)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Unrecoverable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(serr)
		}
		return nil, serr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyMB<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

// IsStatus reports whether err carries an HTTP status code equal to code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
