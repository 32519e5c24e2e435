package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordProviderRequest(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequests.WithLabelValues("acousticbrainz", "rate_limited"))

	RecordProviderRequest("acousticbrainz", "rate_limited")
	RecordProviderRequest("acousticbrainz", "rate_limited")

	after := testutil.ToFloat64(ProviderRequests.WithLabelValues("acousticbrainz", "rate_limited"))
	assert.Equal(t, before+2, after)
}

func TestRecordCandidateAndRetry(t *testing.T) {
	before := testutil.ToFloat64(Candidates.WithLabelValues("custom_target", "accepted"))
	RecordCandidate("custom_target", "accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(Candidates.WithLabelValues("custom_target", "accepted")))

	retries := testutil.ToFloat64(RateLimitRetries.WithLabelValues("musicbrainz"))
	RecordRetry("musicbrainz")
	assert.Equal(t, retries+1, testutil.ToFloat64(RateLimitRetries.WithLabelValues("musicbrainz")))
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("musicbrainz", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(BreakerState.WithLabelValues("musicbrainz")))
}

func TestRecordRecommendation(t *testing.T) {
	RecordRecommendation("track_similarity", "DONE", 1500*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(RecommendationDuration), 1)
}
