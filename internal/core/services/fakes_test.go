package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

// --- Mocks ---

type fakeTrack struct {
	dance, energy, valence float64
	tempo                  float64
	genre                  string
	vocals                 bool
	title, artist          string
}

func (f fakeTrack) highLevel() *domain.HighLevel {
	voice := "voice"
	if !f.vocals {
		voice = "instrumental"
	}
	return &domain.HighLevel{
		Title:  f.title,
		Artist: f.artist,
		Classifiers: map[string]domain.Classifier{
			"danceability":       {All: map[string]float64{"danceable": f.dance}},
			"energy":             {All: map[string]float64{"energetic": f.energy}},
			"mood_happy":         {All: map[string]float64{"happy": f.valence}},
			"genre_dortmund":     {Value: f.genre, Probability: domain.Float(0.9)},
			"voice_instrumental": {Value: voice},
		},
	}
}

func (f fakeTrack) lowLevel() *domain.LowLevel {
	return &domain.LowLevel{BPM: domain.Float(f.tempo), SpectralFlux: domain.Float(0.05)}
}

type fakeAcoustic struct {
	mu         sync.Mutex
	tracks     map[string]fakeTrack
	neighbours map[string][]domain.Neighbour
	errs       map[string]error
	calls      map[string]int
}

func newFakeAcoustic() *fakeAcoustic {
	return &fakeAcoustic{
		tracks:     map[string]fakeTrack{},
		neighbours: map[string][]domain.Neighbour{},
		errs:       map[string]error{},
		calls:      map[string]int{},
	}
}

func (f *fakeAcoustic) HighLevel(ctx context.Context, graphID string) (*domain.HighLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[graphID]++
	if err := f.errs[graphID]; err != nil {
		return nil, err
	}
	t, ok := f.tracks[graphID]
	if !ok {
		return nil, fmt.Errorf("fake: %w", domain.ErrNotFound)
	}
	return t.highLevel(), nil
}

func (f *fakeAcoustic) LowLevel(ctx context.Context, graphID string) (*domain.LowLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tracks[graphID]
	if !ok {
		return nil, fmt.Errorf("fake: %w", domain.ErrNotFound)
	}
	return t.lowLevel(), nil
}

func (f *fakeAcoustic) SimilarRecordings(ctx context.Context, graphID string, n int) ([]domain.Neighbour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool := f.neighbours[graphID]
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool, nil
}

func (f *fakeAcoustic) highLevelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeGraph struct {
	byISRC     map[string][]domain.Recording
	recordings map[string]domain.Recording
	err        error
}

func (f *fakeGraph) SearchRecordingsByISRC(ctx context.Context, isrc string) ([]domain.Recording, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byISRC[isrc], nil
}

func (f *fakeGraph) LookupRecording(ctx context.Context, graphID string) (domain.Recording, error) {
	if f.err != nil {
		return domain.Recording{}, f.err
	}
	rec, ok := f.recordings[graphID]
	if !ok {
		return domain.Recording{}, domain.ErrNotFound
	}
	return rec, nil
}

type fakeCatalog struct {
	tracks        map[string]domain.CatalogTrack
	byISRC        map[string]domain.CatalogTrack
	byTitle       map[string]domain.CatalogTrack
	byGenre       map[string][]domain.CatalogTrack
	text          map[string][]domain.CatalogTrack
	recommended   []domain.CatalogTrack
	playing       *domain.CatalogTrack
	err           error
	textQueries   []string
	genreQueries  []string
	recommendReqs []ports.CatalogRecommendationRequest
}

var _ ports.CatalogProvider = (*fakeCatalog)(nil)

func (f *fakeCatalog) TrackByID(ctx context.Context, id string) (domain.CatalogTrack, error) {
	if f.err != nil {
		return domain.CatalogTrack{}, f.err
	}
	t, ok := f.tracks[id]
	if !ok {
		return domain.CatalogTrack{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeCatalog) CurrentlyPlaying(ctx context.Context) (*domain.CatalogTrack, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.playing, nil
}

func (f *fakeCatalog) SearchByISRC(ctx context.Context, isrc string) (domain.CatalogTrack, error) {
	if f.err != nil {
		return domain.CatalogTrack{}, f.err
	}
	t, ok := f.byISRC[isrc]
	if !ok {
		return domain.CatalogTrack{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeCatalog) SearchByTitleArtist(ctx context.Context, title, artist string) (domain.CatalogTrack, error) {
	if f.err != nil {
		return domain.CatalogTrack{}, f.err
	}
	t, ok := f.byTitle[title+"|"+artist]
	if !ok {
		return domain.CatalogTrack{}, ports.NoConfidentMatchError{Title: title, Artist: artist}
	}
	return t, nil
}

func (f *fakeCatalog) SearchByGenre(ctx context.Context, genre string, limit int) ([]domain.CatalogTrack, error) {
	f.genreQueries = append(f.genreQueries, genre)
	if f.err != nil {
		return nil, f.err
	}
	return f.byGenre[genre], nil
}

func (f *fakeCatalog) SearchText(ctx context.Context, query string, limit int) ([]domain.CatalogTrack, error) {
	f.textQueries = append(f.textQueries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.text[query], nil
}

func (f *fakeCatalog) Recommendations(ctx context.Context, req ports.CatalogRecommendationRequest) ([]domain.CatalogTrack, error) {
	f.recommendReqs = append(f.recommendReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.recommended, nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tracks:  map[string]domain.CatalogTrack{},
		byISRC:  map[string]domain.CatalogTrack{},
		byTitle: map[string]domain.CatalogTrack{},
		byGenre: map[string][]domain.CatalogTrack{},
		text:    map[string][]domain.CatalogTrack{},
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string]domain.TrackFeatureVector
	puts int
}

func (m *memCache) Get(ctx context.Context, graphID string) (*domain.TrackFeatureVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[graphID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (m *memCache) Put(ctx context.Context, v domain.TrackFeatureVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]domain.TrackFeatureVector{}
	}
	m.data[v.GraphID] = v
	m.puts++
	return nil
}

type fakeProbe struct {
	db  float64
	err error
	url string
}

func (f *fakeProbe) Loudness(ctx context.Context, previewURL string) (float64, error) {
	f.url = previewURL
	return f.db, f.err
}
