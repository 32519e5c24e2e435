package musicbrainz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/fetchify/internal/adapters/musicbrainz"
	"github.com/ewilliams-labs/fetchify/internal/adapters/relay"
	"github.com/ewilliams-labs/fetchify/internal/adapters/retry"
	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const recordingID = "b1a9c0e9-d987-4042-ae91-78d6a3267d69"

func newTestClient(t *testing.T, handler http.HandlerFunc) *musicbrainz.Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return musicbrainz.NewClient(ts.Client(), musicbrainz.Config{
		BaseURL:   ts.URL,
		UserAgent: "fetchify-test/1.0",
		Policy:    retry.Policy{MaxAttempts: 1},
	})
}

func TestSearchRecordingsByISRC(t *testing.T) {
	var gotQuery, gotFmt, gotUA string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/2/recording", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotFmt = r.URL.Query().Get("fmt")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"count":2,"recordings":[
			{"id":"` + recordingID + `","title":"Teardrop","artist-credit":[{"name":"Massive Attack"}],"isrcs":["GBAAA9800016"]},
			null,
			{"id":"","title":"broken"},
			{"id":"second","title":" Teardrop (Remaster) ","artist-credit":[{"name":"","artist":{"name":"Massive Attack"}}]}
		]}`))
	})

	recs, err := client.SearchRecordingsByISRC(context.Background(), " GBAAA9800016 ")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "isrc:GBAAA9800016", gotQuery)
	assert.Equal(t, "json", gotFmt)
	assert.Equal(t, "fetchify-test/1.0", gotUA)

	assert.Equal(t, recordingID, recs[0].ID)
	assert.Equal(t, "Teardrop", recs[0].Title)
	assert.Equal(t, "Massive Attack", recs[0].FirstArtist())
	assert.Equal(t, "GBAAA9800016", recs[0].FirstISRC())

	assert.Equal(t, "Teardrop (Remaster)", recs[1].Title)
	assert.Equal(t, []string{"Massive Attack"}, recs[1].ArtistCredits)
	assert.Empty(t, recs[1].FirstISRC())
}

func TestSearchRecordingsByISRC_NoMatches(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0,"recordings":[]}`))
	})

	recs, err := client.SearchRecordingsByISRC(context.Background(), "XX0000000000")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSearchRecordingsByISRC_EmptyISRC(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := client.SearchRecordingsByISRC(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrNoISRC)
}

func TestLookupRecording(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/2/recording/"+recordingID, r.URL.Path)
		assert.Equal(t, "artist-credits releases isrcs", r.URL.Query().Get("inc"))
		_, _ = w.Write([]byte(`{"id":"` + recordingID + `","title":"Teardrop",
			"artist-credit":[{"name":"Massive Attack"},{"name":"Elizabeth Fraser"}],
			"isrcs":["", "GBAAA9800016"],
			"releases":[{"id":"r1","title":"Mezzanine"}]}`))
	})

	rec, err := client.LookupRecording(context.Background(), recordingID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Massive Attack", "Elizabeth Fraser"}, rec.ArtistCredits)
	assert.Equal(t, "GBAAA9800016", rec.FirstISRC())
}

func TestLookupRecording_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		id     string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			id:     recordingID,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, domain.ErrNotFound) },
		},
		{
			name: "invalid id",
			id:   "not-a-uuid",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			},
		},
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			id:     recordingID,
			check: func(t *testing.T, err error) {
				var se *ports.StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
				assert.Equal(t, "musicbrainz", se.Provider)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.LookupRecording(context.Background(), tt.id)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLookupRecording_ThroughRelay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/2/recording/"+recordingID, r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		_, _ = w.Write([]byte(`{"id":"` + recordingID + `","title":"Teardrop"}`))
	}))
	defer upstream.Close()

	relaySrv := httptest.NewServer(relay.NewHandler(relay.Config{MusicBrainzUpstream: upstream.URL}, upstream.Client()))
	defer relaySrv.Close()

	client := musicbrainz.NewClient(relaySrv.Client(), musicbrainz.Config{
		RelayURL: relaySrv.URL,
		Policy:   retry.Policy{MaxAttempts: 1},
	})

	rec, err := client.LookupRecording(context.Background(), recordingID)
	require.NoError(t, err)
	assert.Equal(t, "Teardrop", rec.Title)
}
