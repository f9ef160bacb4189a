package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix     = "MASTERY_"
	EnvConfigFile = "MASTERY_CONFIG"
)

// LoadOption configures Load.
type LoadOption func(*loadSettings)

type loadSettings struct {
	file    string
	envFile string
}

// WithFile loads path as the YAML file, taking precedence over
// MASTERY_CONFIG.
func WithFile(path string) LoadOption {
	return func(s *loadSettings) {
		s.file = path
	}
}

// WithEnvFile reads variables from path before the environment is
// consulted. Defaults to .env; a missing file is ignored.
func WithEnvFile(path string) LoadOption {
	return func(s *loadSettings) {
		s.envFile = path
	}
}

// Load builds a Config by layering defaults, .env, optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) from WithFile or MASTERY_CONFIG
//  3. env (prefix MASTERY_), including variables from .env that the process
//     environment does not already set
//
// A double underscore in a variable name descends one level:
// MASTERY_WEIGHTS__HINT_USAGE sets weights.hint_usage.
func Load(_ context.Context, opts ...LoadOption) (*Config, error) {
	settings := loadSettings{envFile: ".env"}
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.envFile != "" {
		if err := godotenv.Load(settings.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, settings.envFile, err)
		}
	}

	base := New()
	k := koanf.New(".")

	path := settings.file
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		key = strings.ReplaceAll(key, "__", ".")
		if key == "cors_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
