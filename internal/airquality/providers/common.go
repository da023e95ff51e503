package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/airbot/internal/observability"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// newCircuitBreaker returns the breaker shared by all calls to one provider.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// client bundles what every provider needs to talk to its API.
type client struct {
	name    string
	baseURL string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// getJSON issues a single GET through the circuit breaker and decodes the
// JSON body into out. Failed calls are not retried.
func (c *client) getJSON(ctx context.Context, buildRequest func() (*http.Request, error), out any) error {
	if c.http == nil {
		return errNoHTTPClient
	}

	req, err := buildRequest()
	if err != nil {
		return err
	}
	// Ensure the request obeys context cancellation.
	req = req.WithContext(ctx)

	start := time.Now()
	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.http.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		// Handle rate limiting and server errors explicitly.
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return resp, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		// If circuit is open, report it as such.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.ObserveRequest(c.name, "circuit_open", elapsed)
			return fmt.Errorf("%s: %w: %v", c.name, errCircuitOpen, err)
		}
		c.metrics.ObserveRequest(c.name, "error", elapsed)
		return fmt.Errorf("%s: %w", c.name, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ObserveRequest(c.name, "error", elapsed)
		return fmt.Errorf("%s: decode %s: %w", c.name, req.URL.Path, err)
	}
	c.metrics.ObserveRequest(c.name, "success", elapsed)
	return nil
}

// newGet returns a request builder for a GET of rawURL.
func newGet(rawURL string, header http.Header) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}
