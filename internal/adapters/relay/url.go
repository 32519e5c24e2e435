// Package relay implements the pass-through relay for the music graph and acoustic
// providers, and the URL scheme clients use to reach upstreams through it.
package relay

import (
	"net/url"
	"strings"
)

// Route names served by Handler.
const (
	RouteMusicBrainz    = "musicbrainz"
	RouteAcousticBrainz = "acousticbrainz"
)

// Endpoint builds request URLs for one upstream, either directly or through a relay.
type Endpoint struct {
	// Upstream is the provider origin, e.g. https://musicbrainz.org.
	Upstream string
	// RelayBase is the relay origin. Empty means direct requests.
	RelayBase string
	// Route is the relay route for this upstream.
	Route string
}

// URL returns the address for a host-relative path that already carries its query.
// Through a relay the path is escaped into the path query parameter.
func (e Endpoint) URL(pathAndQuery string) string {
	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}
	if e.RelayBase == "" {
		return strings.TrimRight(e.Upstream, "/") + pathAndQuery
	}
	return strings.TrimRight(e.RelayBase, "/") + "/" + e.Route + "?path=" + url.QueryEscape(pathAndQuery)
}

// Relayed reports whether requests go through a relay.
func (e Endpoint) Relayed() bool {
	return e.RelayBase != ""
}
