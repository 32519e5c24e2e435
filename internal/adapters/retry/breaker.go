package retry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/metrics"
)

// BreakerSettings configures a provider circuit breaker.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings opens after 60% failures over at least 10 requests and probes
// again after a minute.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

var errServerStatus = errors.New("upstream server error")

// Breaker is a Doer that stops calling a failing upstream for a while. Transport errors
// and 5xx responses count as failures; everything else, including 404 and 429, succeeds.
type Breaker struct {
	next     Doer
	cb       *gobreaker.CircuitBreaker[*http.Response]
	provider string
}

// NewBreaker wraps next.
func NewBreaker(provider string, next Doer, s BreakerSettings) *Breaker {
	if next == nil {
		next = http.DefaultClient
	}
	metrics.SetBreakerState(provider, stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        provider,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.SetBreakerState(name, stateToFloat(to))
		},
	})

	return &Breaker{next: next, cb: cb, provider: provider}
}

// Do sends req unless the breaker is open, in which case the error wraps
// domain.ErrProviderUnavailable.
func (b *Breaker) Do(req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := b.next.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})

	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w: %v", b.provider, domain.ErrProviderUnavailable, err)
	default:
		return nil, err
	}
}

// State reports the current breaker state.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
