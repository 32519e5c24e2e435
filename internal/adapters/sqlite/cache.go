// Package sqlite provides a SQLite-backed implementation of the feature cache port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
)

// DefaultTTL bounds how long an extracted vector is served from the cache.
const DefaultTTL = time.Hour

// FeatureCache implements ports.FeatureCache for SQLite
type FeatureCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ ports.FeatureCache = (*FeatureCache)(nil)

// NewFeatureCache opens storagePath (":memory:" for a process-local cache) and runs the
// schema migration. ttl <= 0 uses DefaultTTL.
func NewFeatureCache(storagePath string, ttl time.Duration) (*FeatureCache, error) {
	if storagePath == "" {
		storagePath = ":memory:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	c := &FeatureCache{db: db, ttl: ttl, now: time.Now}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return c, nil
}

// Close ensures the DB connection is closed gracefully
func (c *FeatureCache) Close() error {
	return c.db.Close()
}

func (c *FeatureCache) Get(ctx context.Context, graphID string) (*domain.TrackFeatureVector, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT graph_id, danceability, energy, valence, tempo, spectral_flux, missing,
			IFNULL(has_vocals, 1), IFNULL(genre, ''), IFNULL(title, ''), IFNULL(artist, ''),
			IFNULL(fusion_score, 0)
		FROM track_features
		WHERE graph_id = ? AND expires_at > ?
	`, graphID, c.now().UnixNano())

	var v domain.TrackFeatureVector
	var missing int64
	var genre string
	if err := row.Scan(
		&v.GraphID,
		&v.Danceability,
		&v.Energy,
		&v.Valence,
		&v.Tempo,
		&v.SpectralFlux,
		&missing,
		&v.HasVocals,
		&genre,
		&v.Title,
		&v.Artist,
		&v.FusionScore,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load features: %w", err)
	}
	v.Missing = domain.FeatureMask(missing)
	v.Genre = domain.Genre(genre)
	return &v, nil
}

func (c *FeatureCache) Put(ctx context.Context, v domain.TrackFeatureVector) error {
	if v.GraphID == "" {
		return fmt.Errorf("failed to save features: empty graph id")
	}

	query := `
		INSERT INTO track_features (
			graph_id, danceability, energy, valence, tempo, spectral_flux, missing,
			has_vocals, genre, title, artist, fusion_score, expires_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(graph_id) DO UPDATE SET
			danceability=excluded.danceability,
			energy=excluded.energy,
			valence=excluded.valence,
			tempo=excluded.tempo,
			spectral_flux=excluded.spectral_flux,
			missing=excluded.missing,
			has_vocals=excluded.has_vocals,
			genre=excluded.genre,
			title=excluded.title,
			artist=excluded.artist,
			fusion_score=excluded.fusion_score,
			expires_at=excluded.expires_at;
	`
	if _, err := c.db.ExecContext(
		ctx,
		query,
		v.GraphID,
		v.Danceability,
		v.Energy,
		v.Valence,
		v.Tempo,
		v.SpectralFlux,
		int64(v.Missing),
		v.HasVocals,
		string(v.Genre),
		v.Title,
		v.Artist,
		v.FusionScore,
		c.now().Add(c.ttl).UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to save features for %s: %w", v.GraphID, err)
	}
	return nil
}

// Purge deletes expired rows and reports how many were removed.
func (c *FeatureCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM track_features WHERE expires_at <= ?", c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge features: %w", err)
	}
	return res.RowsAffected()
}

func (c *FeatureCache) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS track_features (
		graph_id TEXT PRIMARY KEY,
		danceability REAL NOT NULL,
		energy REAL NOT NULL,
		valence REAL NOT NULL,
		tempo REAL NOT NULL,
		spectral_flux REAL NOT NULL,
		missing INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_track_features_expires ON track_features(expires_at);
	`
	if _, err := c.db.Exec(query); err != nil {
		return err
	}

	// Columns added after the first schema; older files get them on open.
	for _, column := range []string{
		"has_vocals INTEGER",
		"genre TEXT",
		"title TEXT",
		"artist TEXT",
		"fusion_score REAL",
	} {
		if _, err := c.db.Exec("ALTER TABLE track_features ADD COLUMN " + column); err != nil {
			if !isDuplicateColumnError(err) {
				return err
			}
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
