package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/services"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend tracks similar to a track or matching a target",
	Long: "With --track or --now-playing, ranks acoustically similar tracks. With any of " +
		"--dance, --energy, --valence, --tempo or --genre, ranks catalog tracks against that target.",
	Example: "  fetchify recommend --track 4uLU6hMCjMI75M1A2tKUQC\n" +
		"  fetchify recommend --now-playing\n" +
		"  fetchify recommend --energy 0.9 --tempo 128 --genre house",
	RunE: runRecommend,
}

var (
	recTrack      string
	recNowPlaying bool
	recDance      float64
	recEnergy     float64
	recValence    float64
	recTempo      float64
	recGenres     []string
	recLimit      int
)

func init() {
	f := recommendCmd.Flags()
	f.StringVar(&recTrack, "track", "", "Catalog id of the reference track")
	f.BoolVar(&recNowPlaying, "now-playing", false, "Use the listener's currently playing track")
	f.Float64Var(&recDance, "dance", 0, "Target danceability (0-1)")
	f.Float64Var(&recEnergy, "energy", 0, "Target energy (0-1)")
	f.Float64Var(&recValence, "valence", 0, "Target valence (0-1)")
	f.Float64Var(&recTempo, "tempo", 0, "Target tempo in BPM (40-250)")
	f.StringArrayVar(&recGenres, "genre", nil, "Seed genre, repeatable")
	f.IntVar(&recLimit, "limit", 0, "Maximum number of results (default from config)")

	recommendCmd.MarkFlagsMutuallyExclusive("track", "now-playing")
	rootCmd.AddCommand(recommendCmd)
}

// buildQuery turns the flags that were set into a query.
func buildQuery(cmd *cobra.Command) (domain.Query, error) {
	q := domain.Query{TrackID: recTrack, GenreSeeds: recGenres, Limit: recLimit}

	set := func(name string, v float64) *float64 {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return domain.Float(v)
	}
	q.Target = domain.Target{
		Danceability: set("dance", recDance),
		Energy:       set("energy", recEnergy),
		Valence:      set("valence", recValence),
		Tempo:        set("tempo", recTempo),
	}

	custom := !q.Target.Empty() || len(q.GenreSeeds) > 0
	track := recTrack != "" || recNowPlaying
	switch {
	case custom && track:
		return domain.Query{}, errors.New("target flags cannot be combined with --track or --now-playing")
	case !custom && !track:
		return domain.Query{}, errors.New("pass --track, --now-playing or at least one target flag")
	}
	q.Mode = services.ModeFor(q)
	return q, nil
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}

	a, cleanup, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	catalog, err := catalogFor(a)
	if err != nil {
		return err
	}

	res, err := a.Recommender.Recommend(cmd.Context(), catalog, q)
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}
