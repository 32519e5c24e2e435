package retry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

func TestBreaker_OpensAfterFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	b := NewBreaker("musicbrainz-test", ts.Client(), BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
		resp, err := b.Do(req)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("call %d: status %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	_, err := b.Do(req)
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("upstream calls: got %d, want 3", got)
	}
	if b.State() != "open" {
		t.Fatalf("state: got %s", b.State())
	}
}

func TestBreaker_NotFoundCountsAsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	b := NewBreaker("acousticbrainz-test", ts.Client(), BreakerSettings{MinRequests: 1, FailureRatio: 0.1})
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
		resp, err := b.Do(req)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		resp.Body.Close()
	}
	if b.State() != "closed" {
		t.Fatalf("state: got %s", b.State())
	}
}
