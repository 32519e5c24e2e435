package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/fetchify/internal/logging"
)

const (
	DefaultMusicBrainzUpstream    = "https://musicbrainz.org"
	DefaultAcousticBrainzUpstream = "https://acousticbrainz.org"
	DefaultUserAgent              = "Fetchify/1.0 (contact@fetchify.app)"

	maxBodyBytes = 16 << 20
)

// Upstream describes one relayed provider.
type Upstream struct {
	Origin  string
	Headers map[string]string
	// ForceJSON appends fmt=json when the query does not already choose a format.
	ForceJSON bool
}

// Config configures the relay routes.
type Config struct {
	MusicBrainzUpstream    string
	AcousticBrainzUpstream string
	UserAgent              string
	Timeout                time.Duration
}

// Handler forwards GET /<route>?path=<escaped path> to the route's upstream.
type Handler struct {
	client    *http.Client
	upstreams map[string]Upstream
	mux       *http.ServeMux
}

// NewHandler builds the relay routes.
func NewHandler(cfg Config, client *http.Client) *Handler {
	if cfg.MusicBrainzUpstream == "" {
		cfg.MusicBrainzUpstream = DefaultMusicBrainzUpstream
	}
	if cfg.AcousticBrainzUpstream == "" {
		cfg.AcousticBrainzUpstream = DefaultAcousticBrainzUpstream
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	h := &Handler{
		client: client,
		upstreams: map[string]Upstream{
			RouteMusicBrainz: {
				Origin:    cfg.MusicBrainzUpstream,
				Headers:   map[string]string{"User-Agent": cfg.UserAgent},
				ForceJSON: true,
			},
			RouteAcousticBrainz: {
				Origin:  cfg.AcousticBrainzUpstream,
				Headers: map[string]string{"User-Agent": cfg.UserAgent},
			},
		},
		mux: http.NewServeMux(),
	}
	for route := range h.upstreams {
		route := route
		h.mux.HandleFunc("GET /"+route, func(w http.ResponseWriter, r *http.Request) {
			h.forward(w, r, route)
		})
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, route string) {
	up := h.upstreams[route]
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}

	target, err := upstreamURL(up, path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	for k, v := range up.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("route", route).Msg("relay upstream failed")
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	defer resp.Body.Close()

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		w.Header().Set("Retry-After", ra)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("route", route).Msg("relay copy failed")
	}
}

// upstreamURL joins origin and a host-relative path, refusing anything that would
// leave the upstream host.
func upstreamURL(up Upstream, path string) (string, error) {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return "", fmt.Errorf("path must be host-relative")
	}
	origin, err := url.Parse(up.Origin)
	if err != nil {
		return "", fmt.Errorf("invalid upstream")
	}
	u, err := url.Parse(strings.TrimRight(up.Origin, "/") + path)
	if err != nil || u.Host != origin.Host || u.Scheme != origin.Scheme {
		return "", fmt.Errorf("invalid path")
	}
	if up.ForceJSON {
		q := u.Query()
		if q.Get("fmt") == "" {
			q.Set("fmt", "json")
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
