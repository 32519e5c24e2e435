package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// PathEnvVar overrides the config file location.
	PathEnvVar = "CONFIG_PATH"
	// DefaultPath is read when present and PathEnvVar is unset.
	DefaultPath = "fetchify.yaml"
	// EnvPrefix marks variables that override configuration. A double underscore
	// separates sections: FETCHIFY_CACHE__DRIVER=redis sets cache.driver.
	EnvPrefix = "FETCHIFY_"
)

// Load layers defaults, the config file and the environment, then validates.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit file path. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// envKey maps FETCHIFY_RANKING__MAX_RESULTS to ranking.max_results.
func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Validate checks struct tags and the constraints spanning fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.Ranking.Weights.Total() <= 0 {
		errs = append(errs, errors.New("ranking.weights must not all be zero"))
	}
	if c.Custom.Weights.Total() <= 0 {
		errs = append(errs, errors.New("custom.weights must not all be zero"))
	}
	if c.Custom.Threshold < c.Custom.BroadThreshold {
		errs = append(errs, errors.New("custom.broad_threshold must not exceed custom.threshold"))
	}
	if c.Custom.MinResults > c.Ranking.MaxResults {
		errs = append(errs, errors.New("custom.min_results must not exceed ranking.max_results"))
	}
	if c.Breaker.Enabled && c.Breaker.FailureRatio == 0 {
		errs = append(errs, errors.New("breaker.failure_ratio is required when the breaker is enabled"))
	}
	return errors.Join(errs...)
}
