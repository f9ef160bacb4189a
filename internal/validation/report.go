// Package validation summarizes a generated dataset and checks it against
// the reference it was drawn from.
package validation

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/pkg/logger"
)

// DefaultTolerance is the correlation distance a run may show beyond the
// sampling noise expected at its size before it is flagged.
const DefaultTolerance = 0.1

// offDiagonal is the number of off-diagonal correlation entries.
const offDiagonal = model.NumFeatures * (model.NumFeatures - 1)

// SamplingNoise is the Frobenius distance a correct sampler shows from its
// target by chance over n draws. Each sample correlation has a standard
// error of at most 1/sqrt(n), and the norm runs over every off-diagonal
// entry.
func SamplingNoise(n int) float64 {
	if n < 2 {
		return 0
	}
	return math.Sqrt(float64(offDiagonal) / float64(n))
}

// Threshold is the distance above which a run over n draws is flagged.
func Threshold(tolerance float64, n int) float64 {
	return tolerance + SamplingNoise(n)
}

// LevelCount is the share of profiles in one mastery level.
type LevelCount struct {
	Level   string  `yaml:"level" json:"level"`
	Count   int     `yaml:"count" json:"count"`
	Percent float64 `yaml:"percent" json:"percent"`
}

// Summary describes one column of the dataset.
type Summary struct {
	Name string  `yaml:"name" json:"name"`
	Mean float64 `yaml:"mean" json:"mean"`
	Std  float64 `yaml:"std" json:"std"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
}

// Report is the verification summary of a run.
type Report struct {
	RunID                string       `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	Profiles             int          `yaml:"profiles" json:"profiles"`
	Rejected             int          `yaml:"rejected" json:"rejected"`
	Levels               []LevelCount `yaml:"levels" json:"levels"`
	Features             []Summary    `yaml:"features" json:"features"`
	Score                Summary      `yaml:"score" json:"score"`
	CorrelationDistance  float64      `yaml:"correlation_distance" json:"correlation_distance"`
	CorrelationTolerance float64      `yaml:"correlation_tolerance" json:"correlation_tolerance"`
	CorrelationSamples   int          `yaml:"correlation_samples" json:"correlation_samples"`
	CorrelationThreshold float64      `yaml:"correlation_threshold" json:"correlation_threshold"`
	Warnings             []string     `yaml:"warnings,omitempty" json:"warnings,omitempty"`
}

// Summarize builds a report over profiles. distance is the correlation
// distance of the raw batch of samples draws; it is flagged when it exceeds
// tolerance plus the sampling noise of that many draws.
func Summarize(profiles []model.StudentProfile, rejected int, distance, tolerance float64, samples int) Report {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	r := Report{
		Profiles:             len(profiles),
		Rejected:             rejected,
		CorrelationDistance:  distance,
		CorrelationTolerance: tolerance,
		CorrelationSamples:   samples,
		CorrelationThreshold: Threshold(tolerance, samples),
	}

	counts := make([]int, model.NumLevels)
	scores := make([]float64, len(profiles))
	cols := make([][]float64, model.NumFeatures)
	for f := range cols {
		cols[f] = make([]float64, len(profiles))
	}
	for i, p := range profiles {
		if p.Level.Valid() {
			counts[p.Level]++
		}
		scores[i] = p.Score
		for f, x := range p.Features {
			cols[f][i] = x
		}
	}

	for _, l := range model.Levels() {
		lc := LevelCount{Level: l.String(), Count: counts[l]}
		if len(profiles) > 0 {
			lc.Percent = 100 * float64(counts[l]) / float64(len(profiles))
		}
		r.Levels = append(r.Levels, lc)
		if counts[l] == 0 && len(profiles) > 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("no profiles classified %s", l))
		}
	}
	for f, col := range cols {
		r.Features = append(r.Features, summarize(model.Feature(f).String(), col))
	}
	r.Score = summarize("learning_mastery_score", scores)

	if distance > r.CorrelationThreshold {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("correlation distance %.4f exceeds threshold %.4f (tolerance %.4f, sampling noise %.4f over %d draws)",
				distance, r.CorrelationThreshold, tolerance, SamplingNoise(samples), samples))
	}
	return r
}

func summarize(name string, xs []float64) Summary {
	s := Summary{Name: name}
	switch len(xs) {
	case 0:
		return s
	case 1:
		s.Mean, s.Min, s.Max = xs[0], xs[0], xs[0]
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(xs, nil)
	s.Min, s.Max = floats.Min(xs), floats.Max(xs)
	return s
}

// OK reports whether the run raised no warnings.
func (r Report) OK() bool { return len(r.Warnings) == 0 }

// WriteYAML encodes the report as YAML.
func (r Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// SaveYAML writes the report to path.
func (r Report) SaveYAML(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Log writes the report through l: the level distribution and score
// summary at info, each warning at warn.
func (r Report) Log(ctx context.Context, l logger.Logger) {
	for _, lc := range r.Levels {
		l.Info(ctx, "level distribution",
			logger.String("level", lc.Level),
			logger.Int("count", lc.Count),
			logger.Float64("percent", round2(lc.Percent)),
		)
	}
	l.Info(ctx, "score summary",
		logger.Int("profiles", r.Profiles),
		logger.Int("rejected", r.Rejected),
		logger.Float64("mean", round2(r.Score.Mean)),
		logger.Float64("std", round2(r.Score.Std)),
		logger.Float64("min", r.Score.Min),
		logger.Float64("max", r.Score.Max),
		logger.Float64("correlation_distance", r.CorrelationDistance),
		logger.Float64("correlation_threshold", r.CorrelationThreshold),
	)
	for _, w := range r.Warnings {
		l.Warn(ctx, w)
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
