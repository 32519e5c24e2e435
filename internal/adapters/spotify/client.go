package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/fetchify/internal/adapters/retry"
	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const (
	providerName = "spotify"

	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	DefaultMarket   = "US"
)

var errNoContent = errors.New("spotify adapter: no content")

// Client is an HTTP client for the Spotify Web API bound to one set of credentials.
type Client struct {
	httpClient retry.Doer
	baseURL    string
	market     string
}

// compile-time interface assertion
var _ ports.CatalogProvider = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithMarket sets the market used by genre and text searches.
func WithMarket(market string) Option {
	return func(c *Client) {
		if market != "" {
			c.market = market
		}
	}
}

// NewClient constructs a client over an already-authorized HTTP client. Requests are
// retried through policy.
func NewClient(httpClient *http.Client, baseURL string, policy retry.Policy, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: retry.New(providerName, httpClient, policy),
		baseURL:    strings.TrimRight(baseURL, "/"),
		market:     DefaultMarket,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewUserClient authorizes every request with the caller's bearer token.
func NewUserClient(ctx context.Context, token, baseURL string, policy retry.Policy, opts ...Option) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return NewClient(oauth2.NewClient(ctx, src), baseURL, policy, opts...)
}

// NewAppClient authorizes with the client-credentials grant. Such a client can read the
// catalog but has no user context, so CurrentlyPlaying fails.
func NewAppClient(ctx context.Context, clientID, clientSecret, tokenURL, baseURL string, policy retry.Policy, opts ...Option) *Client {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return NewClient(cfg.Client(ctx), baseURL, policy, opts...)
}

// Factory returns a ports.CatalogFactory producing user-scoped clients.
func Factory(ctx context.Context, baseURL string, policy retry.Policy, opts ...Option) ports.CatalogFactory {
	return func(token string) ports.CatalogProvider {
		return NewUserClient(ctx, token, baseURL, policy, opts...)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("spotify adapter: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify adapter: %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return errNoContent
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("spotify adapter: %s: %w", path, domain.ErrMissingToken)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("spotify adapter: %s: %w", path, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &ports.StatusError{Provider: providerName, Endpoint: path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify adapter: %s decode error: %w", path, err)
	}
	return nil
}
