// Package acousticbrainz fetches acoustic descriptors and mood-similarity neighbours
// from AcousticBrainz.
package acousticbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ewilliams-labs/fetchify/internal/adapters/relay"
	"github.com/ewilliams-labs/fetchify/internal/adapters/retry"
	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const providerName = "acousticbrainz"

// Config configures a Client.
type Config struct {
	BaseURL   string
	RelayURL  string
	UserAgent string
	Policy    retry.Policy
	Breaker   *retry.BreakerSettings
}

// Client implements ports.AcousticProvider.
type Client struct {
	httpClient retry.Doer
	endpoint   relay.Endpoint
	userAgent  string
}

var _ ports.AcousticProvider = (*Client)(nil)

func NewClient(httpClient *http.Client, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = relay.DefaultAcousticBrainzUpstream
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = relay.DefaultUserAgent
	}

	var doer retry.Doer = httpClient
	if httpClient == nil {
		doer = http.DefaultClient
	}
	if cfg.Breaker != nil {
		doer = retry.NewBreaker(providerName, doer, *cfg.Breaker)
	}

	return &Client{
		httpClient: retry.New(providerName, doer, cfg.Policy),
		endpoint: relay.Endpoint{
			Upstream:  cfg.BaseURL,
			RelayBase: cfg.RelayURL,
			Route:     relay.RouteAcousticBrainz,
		},
		userAgent: cfg.UserAgent,
	}
}

// recordingID validates a graph id so it can be placed in a path.
func recordingID(graphID string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(graphID))
	if err != nil {
		return "", fmt.Errorf("acousticbrainz adapter: invalid recording id %q: %w", graphID, domain.ErrNotFound)
	}
	return id.String(), nil
}

func (c *Client) getJSON(ctx context.Context, pathAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.URL(pathAndQuery), nil)
	if err != nil {
		return fmt.Errorf("acousticbrainz adapter: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("acousticbrainz adapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("acousticbrainz adapter: %w", domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &ports.StatusError{Provider: providerName, Endpoint: pathAndQuery, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("acousticbrainz adapter: decode error: %w", err)
	}
	return nil
}
