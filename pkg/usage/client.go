// Package usage fetches rolling-window utilization from the quota API.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
)

const (
	// DefaultURL is the OAuth usage endpoint.
	DefaultURL = "https://api.anthropic.com/api/oauth/usage"
	// DefaultBetaHeader enables OAuth bearer auth on the endpoint.
	DefaultBetaHeader = "oauth-2025-04-20"

	maxErrorBodyLength = 512
)

// ErrUnauthorized is matched by AuthError.
var ErrUnauthorized = errors.New("usage source rejected credential")

// AuthError is returned for 401/403 responses.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("usage source returned status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) match any AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// Client queries the usage endpoint.
type Client struct {
	url        string
	betaHeader string
	client     *http.Client
}

// NewClient creates a usage client. timeout bounds each fetch.
func NewClient(url, betaHeader string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        url,
		betaHeader: betaHeader,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch returns the current snapshot. Authorization failures are reported as
// *AuthError; every other failure, including timeouts, is a plain error.
func (c *Client) Fetch(ctx context.Context, token string) (*model.UsageSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "LLM-Quota-Guardian/1.0")
	if c.betaHeader != "" {
		req.Header.Set("anthropic-beta", c.betaHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch usage: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read usage response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: truncate(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("usage source returned status %d: %s", resp.StatusCode, truncate(body))
	}

	return ParseSnapshot(body)
}

type usageResponse struct {
	FiveHour *usageWindow `json:"five_hour"`
	SevenDay *usageWindow `json:"seven_day"`
}

type usageWindow struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    *string  `json:"resets_at"`
}

// ParseSnapshot decodes a usage payload. Absent utilization counts as 0 and
// absent or unparseable reset times as unknown.
func ParseSnapshot(body []byte) (*model.UsageSnapshot, error) {
	var resp usageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode usage response: %w", err)
	}

	return &model.UsageSnapshot{
		FiveHourPercent: resp.FiveHour.percent(),
		WeeklyPercent:   resp.SevenDay.percent(),
		FiveHourResetAt: resp.FiveHour.resetAt(),
		WeeklyResetAt:   resp.SevenDay.resetAt(),
	}, nil
}

func (w *usageWindow) percent() int {
	if w == nil || w.Utilization == nil {
		return 0
	}
	p := int(math.Round(*w.Utilization))
	if p < 0 {
		return 0
	}
	return p
}

func (w *usageWindow) resetAt() *time.Time {
	if w == nil || w.ResetsAt == nil || *w.ResetsAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *w.ResetsAt)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func truncate(body []byte) string {
	if len(body) <= maxErrorBodyLength {
		return string(body)
	}
	return string(body[:maxErrorBodyLength]) + "..."
}
