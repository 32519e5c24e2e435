// Package preview measures loudness from catalog audio previews.
package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

const (
	// SilenceDBFS is reported for previews with no signal.
	SilenceDBFS = -90.0

	defaultTimeout  = 15 * time.Second
	maxPreviewBytes = 8 << 20
)

var errNoSamples = errors.New("preview contains no samples")

// Probe downloads an MP3 preview and reports its RMS level in dBFS.
type Probe struct {
	client *http.Client
}

var _ ports.LoudnessProbe = (*Probe)(nil)

// NewProbe returns a probe using client, or a client with a 15s timeout when nil.
func NewProbe(client *http.Client) *Probe {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Probe{client: client}
}

func (p *Probe) Loudness(ctx context.Context, previewURL string) (float64, error) {
	if previewURL == "" {
		return 0, fmt.Errorf("preview: empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, previewURL, nil)
	if err != nil {
		return 0, fmt.Errorf("preview: bad url: %w", err)
	}

	// #nosec G107 -- URL comes from the catalog track payload
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("preview fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("preview fetch status %d", resp.StatusCode)
	}

	decoder, err := mp3.NewDecoder(io.LimitReader(resp.Body, maxPreviewBytes))
	if err != nil {
		return 0, fmt.Errorf("preview decode failed: %w", err)
	}
	return measure(decoder)
}

// measure reads signed 16-bit little-endian PCM and returns its RMS level in dBFS.
func measure(pcm io.Reader) (float64, error) {
	buf := make([]byte, 4096)
	var sumSquares float64
	var count float64
	var carry []byte

	for {
		n, err := pcm.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(carry) > 0 {
				chunk = append(carry, chunk...)
				carry = nil
			}
			i := 0
			for ; i+1 < len(chunk); i += 2 {
				sample := int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)
				val := float64(sample)
				sumSquares += val * val
				count++
			}
			if i < len(chunk) {
				carry = []byte{chunk[i]}
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, fmt.Errorf("preview read failed: %w", err)
		}
	}

	if count == 0 {
		return 0, errNoSamples
	}

	rms := math.Sqrt(sumSquares/count) / 32768.0
	if rms <= 0 {
		return SilenceDBFS, nil
	}
	return math.Max(SilenceDBFS, 20*math.Log10(rms)), nil
}
