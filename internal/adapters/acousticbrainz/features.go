package acousticbrainz

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
)

const maxNeighbours = 1000

// HighLevel fetches classifier outputs with class names mapped to labels.
func (c *Client) HighLevel(ctx context.Context, graphID string) (*domain.HighLevel, error) {
	id, err := recordingID(graphID)
	if err != nil {
		return nil, err
	}

	var resp highLevelResponse
	if err := c.getJSON(ctx, "/api/v1/"+id+"/high-level?map_classes=true", &resp); err != nil {
		return nil, err
	}
	return mapHighLevel(&resp), nil
}

// LowLevel fetches signal descriptors.
func (c *Client) LowLevel(ctx context.Context, graphID string) (*domain.LowLevel, error) {
	id, err := recordingID(graphID)
	if err != nil {
		return nil, err
	}

	var resp lowLevelResponse
	if err := c.getJSON(ctx, "/api/v1/"+id+"/low-level", &resp); err != nil {
		return nil, err
	}
	return mapLowLevel(&resp), nil
}

// SimilarRecordings returns up to n mood neighbours of graphID in provider order. The
// query recording and repeated ids are dropped.
func (c *Client) SimilarRecordings(ctx context.Context, graphID string, n int) ([]domain.Neighbour, error) {
	id, err := recordingID(graphID)
	if err != nil {
		return nil, err
	}
	n = max(1, min(n, maxNeighbours))

	q := url.Values{}
	q.Set("recording_ids", id)
	q.Set("n_neighbours", strconv.Itoa(n))
	q.Set("remove_dups", "all")

	var resp similarityResponse
	if err := c.getJSON(ctx, "/api/v1/similarity/moods?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	raw, ok := resp[id]
	if !ok && len(resp) == 1 {
		for _, v := range resp {
			raw = v
		}
	}
	groups, err := neighbourGroups(raw)
	if err != nil {
		return nil, fmt.Errorf("acousticbrainz adapter: similarity payload: %w", err)
	}

	seen := map[string]struct{}{id: {}}
	var out []domain.Neighbour
	for _, group := range groups {
		for _, nb := range group {
			if nb.RecordingMBID == "" {
				continue
			}
			if _, dup := seen[nb.RecordingMBID]; dup {
				continue
			}
			seen[nb.RecordingMBID] = struct{}{}

			entry := domain.Neighbour{GraphID: nb.RecordingMBID}
			if nb.Distance != nil {
				entry.Distance = *nb.Distance
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// neighbourGroups accepts both [[...]] and {"0": [...]} shapes.
func neighbourGroups(raw json.RawMessage) ([][]neighbour, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list [][]neighbour
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var byOffset map[string][]neighbour
	if err := json.Unmarshal(raw, &byOffset); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(byOffset))
	for k := range byOffset {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	groups := make([][]neighbour, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, byOffset[k])
	}
	return groups, nil
}
