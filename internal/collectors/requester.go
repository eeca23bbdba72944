package collectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrRateLimited is returned when a venue keeps answering 429 after every
// retry.
var ErrRateLimited = errors.New("rate limited")

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	maxBackoff         = 10 * time.Second
)

// RequesterConfig configures a venue's HTTP requester.
type RequesterConfig struct {
	Name        string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	Throttle    *Throttle
	HTTPClient  *http.Client
}

// Requester issues throttled GETs against one venue and decodes JSON bodies.
// A 429 trips the venue's cooldown; 5xx and transport errors back off
// exponentially; other 4xx fail immediately.
type Requester struct {
	name        string
	client      *http.Client
	throttle    *Throttle
	maxAttempts int
	backoff     time.Duration
}

func NewRequester(cfg RequesterConfig) *Requester {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Requester{
		name:        cfg.Name,
		client:      client,
		throttle:    cfg.Throttle,
		maxAttempts: attempts,
		backoff:     backoff,
	}
}

func (r *Requester) Name() string {
	return r.name
}

// GetJSON fetches rawURL with query merged into its query string and decodes
// the response into dst.
func (r *Requester) GetJSON(ctx context.Context, rawURL string, query url.Values, dst any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: parse url: %w", r.name, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.throttle.Wait(ctx); err != nil {
			return err
		}
		retry, err := r.once(ctx, u.String(), dst)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == r.maxAttempts {
			break
		}
		if errors.Is(err, ErrRateLimited) {
			// the throttle's cooldown gate does the waiting
			continue
		}
		if err := sleepCtx(ctx, backoffFor(r.backoff, attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (r *Requester) once(ctx context.Context, target string, dst any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("%s: %w", r.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return false, fmt.Errorf("%s: decode %s: %w", r.name, target, err)
		}
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		r.throttle.Trip()
		return true, fmt.Errorf("%s: %w", r.name, ErrRateLimited)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err = fmt.Errorf("%s API %s: %s", r.name, resp.Status, string(body))
	return resp.StatusCode >= 500, err
}

func backoffFor(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
