// Package musicbrainz reads recordings from the MusicBrainz web service, either
// directly or through the relay.
package musicbrainz

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/fetchify/internal/adapters/relay"
	"github.com/ewilliams-labs/fetchify/internal/adapters/retry"
	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const providerName = "musicbrainz"

// Config configures a Client.
type Config struct {
	// BaseURL is the upstream origin used in direct mode.
	BaseURL string
	// RelayURL routes requests through a relay when set.
	RelayURL  string
	UserAgent string
	Policy    retry.Policy
	// Breaker enables a circuit breaker when non-nil.
	Breaker *retry.BreakerSettings
}

// Client implements ports.GraphProvider.
type Client struct {
	httpClient retry.Doer
	endpoint   relay.Endpoint
	userAgent  string
}

var _ ports.GraphProvider = (*Client)(nil)

// NewClient builds a client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = relay.DefaultMusicBrainzUpstream
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
			Route:     relay.RouteMusicBrainz,
		},
		userAgent: cfg.UserAgent,
	}
}

func (c *Client) getJSON(ctx context.Context, pathAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.URL(pathAndQuery), nil)
	if err != nil {
		return fmt.Errorf("musicbrainz adapter: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("musicbrainz adapter: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("musicbrainz adapter: %w", domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &ports.StatusError{Provider: providerName, Endpoint: pathAndQuery, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("musicbrainz adapter: decode error: %w", err)
	}
	return nil
}
