// Package main is the fetchify command line: run recommendations and track analyses
// against the live providers without the HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/fetchify/internal/app"
	"github.com/ewilliams-labs/fetchify/internal/config"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

// TokenEnvVar holds the listener's catalog bearer token.
const TokenEnvVar = "FETCHIFY_TOKEN"

var (
	configPath string
	token      string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "fetchify",
	Short:         "Similar-track recommendations from open acoustic data",
	Long:          "fetchify resolves catalog tracks to MusicBrainz recordings, reads their AcousticBrainz descriptors and ranks similar tracks or tracks matching a target mood.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (default: $CONFIG_PATH or ./fetchify.yaml)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "Catalog bearer token (default: $"+TokenEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and wires the engine. The returned cleanup must be called.
func setup(ctx context.Context) (*app.App, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	logCfg := cfg.Logging
	logCfg.Format = "console"
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	logging.Init(logCfg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, func() { _ = a.Close() }, nil
}

// catalogFor prefers the listener's token and falls back to the app credentials.
func catalogFor(a *app.App) (ports.CatalogProvider, error) {
	t := token
	if t == "" {
		t = os.Getenv(TokenEnvVar)
	}
	if t != "" {
		return a.Catalogs(t), nil
	}
	catalog, err := a.AppCatalog()
	if err != nil {
		return nil, fmt.Errorf("no catalog credentials: pass --token, set %s, or configure spotify.client_id and spotify.client_secret", TokenEnvVar)
	}
	return catalog, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
