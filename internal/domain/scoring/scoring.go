// Package scoring computes the learning mastery score of a feature vector
// and classifies it into a mastery level.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/xscaffold/internal/domain/constraints"
	"github.com/okian/xscaffold/internal/domain/model"
)

// Score bounds and the fixed parameters of the component transforms.
const (
	MinScore = 0
	MaxScore = 100

	confidenceBase        = 1.0  // expected confidence at a score of 0
	confidencePerScore    = 25.0 // score points per confidence step
	calibrationBand       = 1.0
	attentionFreeSwitches = 1.0 // tab switches per question tolerated without penalty
	attentionSpan         = 2.0
	changesFreeRate       = 0.5
	literatureHintPower   = 1.5
)

// Formula selects the scoring revision.
type Formula string

// Known formulas.
const (
	// Hybrid rewards score, hard accuracy, calibration and attention and
	// penalizes hint usage and answer instability.
	Hybrid Formula = "hybrid"
	// Literature weighs raw score more heavily, rewards answer stability and
	// penalizes hint usage super-linearly.
	Literature Formula = "literature"
)

// ParseFormula resolves a formula name; empty selects Hybrid.
func ParseFormula(name string) (Formula, error) {
	switch Formula(strings.ToLower(strings.TrimSpace(name))) {
	case "", Hybrid:
		return Hybrid, nil
	case Literature:
		return Literature, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormula, name)
}

// Weights are the points each component contributes at its maximum. Score
// is applied to score_percentage/100, every other weight to a [0,1]
// component. Under Literature, Instability rewards stability (1 - changes
// component) instead of penalizing instability.
type Weights struct {
	Score        float64 `koanf:"score" json:"score" yaml:"score"`
	HardAccuracy float64 `koanf:"hard_accuracy" json:"hard_accuracy" yaml:"hard_accuracy"`
	Calibration  float64 `koanf:"calibration" json:"calibration" yaml:"calibration"`
	Attention    float64 `koanf:"attention" json:"attention" yaml:"attention"`
	HintUsage    float64 `koanf:"hint_usage" json:"hint_usage" yaml:"hint_usage"`
	Instability  float64 `koanf:"instability" json:"instability" yaml:"instability"`
}

// DefaultWeights returns the weights of formula f.
func DefaultWeights(f Formula) Weights {
	if f == Literature {
		return Weights{Score: 50, HardAccuracy: 15, Calibration: 10, Attention: 10, HintUsage: 15, Instability: 10}
	}
	return Weights{Score: 30, HardAccuracy: 25, Calibration: 15, Attention: 15, HintUsage: 10, Instability: 5}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	named := map[string]float64{
		"score":         w.Score,
		"hard_accuracy": w.HardAccuracy,
		"calibration":   w.Calibration,
		"attention":     w.Attention,
		"hint_usage":    w.HintUsage,
		"instability":   w.Instability,
	}
	for name, x := range named {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s=%g", ErrInvalidWeights, name, x)
		}
	}
	return nil
}

// Components are the normalized inputs of the formula, each in [0,1].
type Components struct {
	Accuracy     float64 `json:"accuracy"`
	HardAccuracy float64 `json:"hard_accuracy"`
	Calibration  float64 `json:"calibration"`
	Attention    float64 `json:"attention"`
	HintUsage    float64 `json:"hint_usage"`
	Instability  float64 `json:"instability"`
}

// Breakdown is a score with the components and the unclipped total.
type Breakdown struct {
	Components Components `json:"components"`
	Raw        float64    `json:"raw"`
	Score      float64    `json:"score"`
}

// Result is a score and its mastery level.
type Result struct {
	Score float64
	Level model.MasteryLevel
}

// Scorer computes mastery scores.
type Scorer interface {
	// Score validates v and returns its mastery score in [0,100].
	Score(v model.FeatureVector) (float64, error)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithFormula selects the formula. Weights not set explicitly follow it.
func WithFormula(f Formula) Option {
	return func(e *Engine) {
		if f == Hybrid || f == Literature {
			e.formula = f
		}
	}
}

// WithWeights overrides the formula's default weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = &w
	}
}

// WithDomains sets the table inputs are validated against.
func WithDomains(t constraints.Table) Option {
	return func(e *Engine) {
		e.domains = t
	}
}

// Engine scores feature vectors. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	formula Formula
	weights *Weights
	domains constraints.Table
}

// NewEngine creates an engine, hybrid formula and default domains unless
// overridden.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{formula: Hybrid, domains: constraints.DefaultTable()}
	for _, opt := range opts {
		opt(e)
	}
	if e.weights == nil {
		w := DefaultWeights(e.formula)
		e.weights = &w
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	if err := e.domains.Validate(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	return e, nil
}

// Formula returns the active formula.
func (e *Engine) Formula() Formula { return e.formula }

// Weights returns the active weights.
func (e *Engine) Weights() Weights { return *e.weights }

// Domains returns the validation table.
func (e *Engine) Domains() constraints.Table { return e.domains }

// Score validates v against the domains and returns its mastery score.
func (e *Engine) Score(v model.FeatureVector) (float64, error) {
	b, err := e.Breakdown(v)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Breakdown validates v and returns the score with its components.
func (e *Engine) Breakdown(v model.FeatureVector) (Breakdown, error) {
	if err := e.domains.Check(v); err != nil {
		return Breakdown{}, err
	}
	c := components(v)
	raw := e.combine(c)
	return Breakdown{Components: c, Raw: raw, Score: clip(raw, MinScore, MaxScore)}, nil
}

// Evaluate scores v and classifies the score.
func (e *Engine) Evaluate(v model.FeatureVector) (Result, error) {
	s, err := e.Score(v)
	if err != nil {
		return Result{}, err
	}
	level, err := Classify(s)
	if err != nil {
		return Result{}, err
	}
	return Result{Score: s, Level: level}, nil
}

func components(v model.FeatureVector) Components {
	s := v[model.ScorePercentage]
	expected := confidenceBase + s/confidencePerScore

	c := Components{
		Accuracy:     s / 100,
		HardAccuracy: v[model.HardQuestionAccuracy] / 100,
		Attention:    clip(1-(v[model.TabSwitchesRate]-attentionFreeSwitches)/attentionSpan, 0, 1),
		HintUsage:    v[model.HintUsagePercentage] / 100,
		Instability:  clip(v[model.AnswerChangesRate]-changesFreeRate, 0, 1),
	}
	if math.Abs(v[model.AvgConfidence]-expected) <= calibrationBand {
		c.Calibration = 1
	}
	return c
}

func (e *Engine) combine(c Components) float64 {
	w := e.weights
	total := w.Score*c.Accuracy +
		w.HardAccuracy*c.HardAccuracy +
		w.Calibration*c.Calibration +
		w.Attention*c.Attention
	if e.formula == Literature {
		return total + w.Instability*(1-c.Instability) - w.HintUsage*math.Pow(c.HintUsage, literatureHintPower)
	}
	return total - w.HintUsage*c.HintUsage - w.Instability*c.Instability
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
