// Package profile turns feature vectors into identified, scored and
// classified student profiles.
package profile

import (
	"fmt"
	"strconv"

	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/scoring"
)

// Defaults for identifiers and score rounding.
const (
	DefaultPrefix         = "STU"
	DefaultWidth          = 4
	DefaultScorePrecision = 1
)

// Option configures an Assembler.
type Option func(*Assembler)

// WithIDPrefix sets the identifier prefix.
func WithIDPrefix(prefix string) Option {
	return func(a *Assembler) {
		a.prefix = prefix
	}
}

// WithIDWidth sets the minimum zero-padded width of the sequence number.
func WithIDWidth(width int) Option {
	return func(a *Assembler) {
		if width > 0 {
			a.width = width
		}
	}
}

// WithScorePrecision sets the decimals a score is rounded to before it is
// classified. Negative keeps full precision.
func WithScorePrecision(p int) Option {
	return func(a *Assembler) {
		a.precision = p
	}
}

// Assembler builds profiles. Identifiers are positional: the record at index
// i of a run of n records is prefix + i+1 padded to Width(n).
type Assembler struct {
	scorer    scoring.Scorer
	prefix    string
	width     int
	precision int
}

// NewAssembler creates an assembler around scorer.
func NewAssembler(scorer scoring.Scorer, opts ...Option) *Assembler {
	a := &Assembler{
		scorer:    scorer,
		prefix:    DefaultPrefix,
		width:     DefaultWidth,
		precision: DefaultScorePrecision,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordError reports a record that could not be turned into a profile.
type RecordError struct {
	Index int
	ID    string
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Width returns the sequence width used for a run of total records.
func (a *Assembler) Width(total int) int {
	if d := len(strconv.Itoa(total)); d > a.width {
		return d
	}
	return a.width
}

// FormatID returns prefix followed by seq zero-padded to width.
func FormatID(prefix string, width, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// Profile scores and classifies one vector under a caller-supplied id.
func (a *Assembler) Profile(id string, v model.FeatureVector) (model.StudentProfile, error) {
	raw, err := a.scorer.Score(v)
	if err != nil {
		return model.StudentProfile{}, err
	}
	score := scoring.Round(raw, a.precision)
	level, err := scoring.Classify(score)
	if err != nil {
		return model.StudentProfile{}, err
	}
	return model.StudentProfile{ID: id, Features: v, Score: score, Level: level}, nil
}

// Assemble builds profiles for a whole run, preserving input order. Records
// that fail scoring are skipped and reported; their ids are not reused.
func (a *Assembler) Assemble(vectors []model.FeatureVector) ([]model.StudentProfile, []*RecordError) {
	return a.AssembleRange(vectors, 0, len(vectors))
}

// AssembleRange builds profiles for a slice of a run of total records whose
// first element sits at offset. Batches assembled this way get the same ids
// as a single Assemble over the whole run.
func (a *Assembler) AssembleRange(vectors []model.FeatureVector, offset, total int) ([]model.StudentProfile, []*RecordError) {
	width := a.Width(total)
	profiles := make([]model.StudentProfile, 0, len(vectors))
	var rejected []*RecordError
	for i, v := range vectors {
		idx := offset + i
		id := FormatID(a.prefix, width, idx+1)
		p, err := a.Profile(id, v)
		if err != nil {
			rejected = append(rejected, &RecordError{Index: idx, ID: id, Err: err})
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, rejected
}
