// Package httpretry wraps an HTTP client with exponential backoff and
// jitter so calls to the SIOMA API survive transient upstream hiccups.
package httpretry

import (
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests. Both *http.Client
// and *RetryClient satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient retries transient failures with exponential backoff and full
// jitter. Client errors (4xx other than 429) are returned immediately.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// New wraps the given HTTPDoer. A nil client gets a 30s-timeout default;
// maxRetries <= 0 means 3 retries after the initial attempt.
func New(client HTTPDoer, maxRetries int) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
}

// Do executes the request, retrying on 429/5xx responses and transient
// network errors. Context cancellation stops the retry loop. On the last
// attempt the response is returned as-is so the caller can read the body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if req.Context().Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, req.Context().Err()
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.backoff(attempt)
			log.Printf("[httpretry] attempt %d/%d for %s %s%s (waiting %s)",
				attempt, rc.maxRetries, req.Method, req.URL.Host, req.URL.Path, delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, req.Context().Err()
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == rc.maxRetries {
			return resp, nil
		}

		// Drain for connection reuse before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// backoff returns the wait before the given retry attempt: full jitter over
// baseDelay*2^(attempt-1), capped at maxDelay, floored at 100ms.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	exp := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(rc.maxDelay) {
		exp = float64(rc.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
