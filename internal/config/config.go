// Package config defines process configuration and its loading.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a .env file, a YAML file and MASTERY_ environment variables
//   over the defaults.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/xscaffold/internal/domain/constraints"
	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/profile"
	"github.com/okian/xscaffold/internal/domain/sampler"
	"github.com/okian/xscaffold/internal/domain/scoring"
	"github.com/okian/xscaffold/internal/validation"
	"github.com/okian/xscaffold/pkg/logger"
)

// DomainOverride replaces parts of one feature's built-in domain.
type DomainOverride struct {
	Min       *float64 `koanf:"min"`
	Max       *float64 `koanf:"max"`
	Precision *int     `koanf:"precision"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CORSOrigins lists the origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins"`

	// SampleCount is the number of profiles a run generates.
	SampleCount int `koanf:"sample_count"`

	// Seed is the master seed of generation runs.
	Seed uint64 `koanf:"seed"`

	// Epsilon is the ridge added to the correlation diagonal.
	Epsilon float64 `koanf:"epsilon"`

	// BatchSize is the number of profiles per worker job.
	BatchSize int `koanf:"batch_size"`

	// WorkerCount sets the number of generation workers; 0 means one per CPU.
	WorkerCount int `koanf:"worker_count"`

	// VarianceFloor, when positive, admits zero-variance reference features.
	VarianceFloor float64 `koanf:"variance_floor"`

	// CorrelationTolerance is the correlation distance a run report flags.
	CorrelationTolerance float64 `koanf:"correlation_tolerance"`

	// ScorePrecision is the decimals scores are rounded to; -1 keeps all.
	ScorePrecision int `koanf:"score_precision"`

	IDPrefix string `koanf:"id_prefix"`
	IDWidth  int    `koanf:"id_width"`

	// Formula selects hybrid or literature scoring.
	Formula string `koanf:"formula"`

	// Weights overrides individual weights of the formula's defaults.
	Weights map[string]float64 `koanf:"weights"`

	// Domains overrides feature domains by feature name.
	Domains map[string]DomainOverride `koanf:"domains"`

	// DBPath is the SQLite file runs are stored in; empty disables storage.
	DBPath string `koanf:"db_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            logger.FormatText,
		Addr:                 ":9080",
		CORSOrigins:          []string{"*"},
		SampleCount:          1000,
		Seed:                 42,
		Epsilon:              sampler.DefaultEpsilon,
		BatchSize:            1024,
		CorrelationTolerance: validation.DefaultTolerance,
		ScorePrecision:       profile.DefaultScorePrecision,
		IDPrefix:             profile.DefaultPrefix,
		IDWidth:              profile.DefaultWidth,
		Formula:              string(scoring.Hybrid),
		DBPath:               "data/runs.db",
	}
}

// ScoringFormula returns the parsed formula.
func (c *Config) ScoringFormula() (scoring.Formula, error) {
	f, err := scoring.ParseFormula(c.Formula)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return f, nil
}

// ScoringWeights returns the formula's default weights with the configured
// overrides applied.
func (c *Config) ScoringWeights() (scoring.Weights, error) {
	f, err := c.ScoringFormula()
	if err != nil {
		return scoring.Weights{}, err
	}
	w := scoring.DefaultWeights(f)
	for name, v := range c.Weights {
		switch strings.ToLower(name) {
		case "score":
			w.Score = v
		case "hard_accuracy":
			w.HardAccuracy = v
		case "calibration":
			w.Calibration = v
		case "attention":
			w.Attention = v
		case "hint_usage":
			w.HintUsage = v
		case "instability":
			w.Instability = v
		default:
			return scoring.Weights{}, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownWeight, name)
		}
	}
	if err := w.Validate(); err != nil {
		return scoring.Weights{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return w, nil
}

// DomainTable returns the built-in domains with the configured overrides
// applied.
func (c *Config) DomainTable() (constraints.Table, error) {
	t := constraints.DefaultTable()
	for name, o := range c.Domains {
		f, err := model.ParseFeature(name)
		if err != nil {
			return t, fmt.Errorf("%w: domains: %w", ErrInvalidConfig, err)
		}
		d := t.Domain(f)
		if o.Min != nil {
			d.Min = *o.Min
		}
		if o.Max != nil {
			d.Max = *o.Max
		}
		if o.Precision != nil {
			d.Precision = *o.Precision
		}
		if t, err = t.With(f, d); err != nil {
			return t, fmt.Errorf("%w: domains.%s: %w", ErrInvalidConfig, name, err)
		}
	}
	return t, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.LogFormat != logger.FormatText && c.LogFormat != logger.FormatJSON {
		problems = append(problems, fmt.Sprintf("log_format %q must be text or json", c.LogFormat))
	}
	if c.SampleCount <= 0 {
		problems = append(problems, "sample_count must be positive")
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch_size must be positive")
	}
	if c.WorkerCount < 0 {
		problems = append(problems, "worker_count must not be negative")
	}
	if c.Epsilon < 0 {
		problems = append(problems, "epsilon must not be negative")
	}
	if c.VarianceFloor < 0 {
		problems = append(problems, "variance_floor must not be negative")
	}
	if c.CorrelationTolerance <= 0 {
		problems = append(problems, "correlation_tolerance must be positive")
	}
	if c.ScorePrecision < -1 || c.ScorePrecision > 9 {
		problems = append(problems, "score_precision must be between -1 and 9")
	}
	if c.IDWidth < 1 {
		problems = append(problems, "id_width must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	if _, err := c.ScoringWeights(); err != nil {
		return err
	}
	if _, err := c.DomainTable(); err != nil {
		return err
	}
	return nil
}
