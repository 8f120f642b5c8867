package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"
)

// maxErrorBodyBytes caps how much of an upstream error body is kept for the
// error message.
const maxErrorBodyBytes = 512

// apiClient is the shared HTTP plumbing for the adapters: one rate limiter
// per provider, API-key header injection, and JSON decoding with a
// distinguishable upstream error.
type apiClient struct {
	http      *http.Client
	limiter   *rate.Limiter
	baseURL   string
	apiKey    string
	keyHeader string
}

func newAPIClient(cfg Config, keyHeader string) *apiClient {
	return &apiClient{
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		keyHeader: keyHeader,
	}
}

// getJSON performs a rate-limited GET against path with the given query
// values and decodes the response into out. Non-2xx statuses and transport
// failures wrap ErrUpstream.
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrUpstream, err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	// Some providers take the key as a query parameter instead.
	if c.apiKey != "" && c.keyHeader != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("%w: %s %s: status %d: %s",
			ErrUpstream, req.Method, path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	return nil
}
