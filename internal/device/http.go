package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RingPath is appended to the controller base URL for ring requests.
const RingPath = "/ring"

// HTTPRinger posts ring requests to a network attached controller.
type HTTPRinger struct {
	endpoint string
	client   *http.Client
}

type ringRequest struct {
	Duration int    `json:"duration"`
	Source   string `json:"source"`
}

// NewHTTPRinger validates baseURL and returns a ringer posting to baseURL+RingPath.
// A nil client selects a client without its own timeout; deadlines come from the context.
func NewHTTPRinger(baseURL string, client *http.Client) (*HTTPRinger, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("device: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("device: base url must use http or https, got %q", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("device: base url %q has no host", baseURL)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPRinger{
		endpoint: strings.TrimRight(parsed.String(), "/") + RingPath,
		client:   client,
	}, nil
}

// Endpoint returns the URL ring requests are posted to.
func (r *HTTPRinger) Endpoint() string {
	return r.endpoint
}

// Ring posts {"duration": seconds, "source": source}. Any non-2xx status is an error.
func (r *HTTPRinger) Ring(ctx context.Context, duration time.Duration, source string) error {
	if err := checkDuration(duration); err != nil {
		return err
	}

	body, err := json.Marshal(ringRequest{
		Duration: int(duration.Round(time.Second) / time.Second),
		Source:   source,
	})
	if err != nil {
		return fmt.Errorf("device: encode ring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("device: build ring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("device: post ring: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("device: controller responded %s", resp.Status)
	}
	return nil
}
