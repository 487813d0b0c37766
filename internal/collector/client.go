package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"contentpulse/internal/metrics"
	"contentpulse/internal/model"
)

// StatusError is a non-2xx response from a platform API.
type StatusError struct {
	Platform model.Platform
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api status %d", e.Platform, e.Code)
}

// httpClient is the rate-limited, retrying transport every collector shares.
type httpClient struct {
	platform    model.Platform
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	userAgent   string
}

func newHTTPClient(p model.Platform) *httpClient {
	c := &httpClient{
		platform:   p,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "contentpulse/1.0",
	}
	c.apply(DefaultLimits(p))
	return c
}

// apply replaces the client's limiter and retry policy.
func (c *httpClient) apply(l Limits) {
	c.limiter = l.limiter()
	c.maxAttempts = l.MaxAttempts
	c.baseBackoff = l.BaseBackoff
}

// getJSON fetches u and decodes the body into out. decorate may set auth headers.
func (c *httpClient) getJSON(ctx context.Context, u string, decorate func(*http.Request), out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if decorate != nil {
		decorate(req)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Platform: c.platform, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s api decode: %w", c.platform, err)
	}
	return nil
}

func (c *httpClient) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(string(c.platform))
		}
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err == nil {
			if !retryable(resp.StatusCode) || attempt == c.maxAttempts {
				return resp, nil
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			_ = resp.Body.Close()
			// jitter +/-20%
			jitter := time.Duration(float64(wait) * 0.2)
			if jitter > 0 {
				wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%s request failed after %d attempts: %w", c.platform, c.maxAttempts, lastErr)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func retryAfter(header string, def time.Duration) time.Duration {
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return def
}
