// Package service wires the generation pipeline and the scoring engine
// behind the operations used by the CLI and the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/xscaffold/internal/adapters/repository"
	"github.com/okian/xscaffold/internal/domain/constraints"
	"github.com/okian/xscaffold/internal/domain/dedupe"
	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/profile"
	"github.com/okian/xscaffold/internal/domain/sampler"
	"github.com/okian/xscaffold/internal/domain/scoring"
	"github.com/okian/xscaffold/internal/validation"
	"github.com/okian/xscaffold/pkg/logger"
	"github.com/okian/xscaffold/pkg/metrics"
)

// Default pipeline configuration.
const (
	DefaultSampleCount = 1000
	DefaultBatchSize   = 1024
)

// Service implements generation and scoring.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine *scoring.Engine
	store  repository.Store

	// Configuration
	sampleCount    int
	seed           uint64
	epsilon        float64
	varianceFloor  float64
	batchSize      int
	workerCount    int
	domains        constraints.Table
	formula        scoring.Formula
	weights        *scoring.Weights
	idPrefix       string
	idWidth        int
	scorePrecision int
	tolerance      float64

	// State
	startedAt       time.Time
	lastRunID       string
	runs            atomic.Int64
	generated       atomic.Int64
	rejected        atomic.Int64
	scoringRequests atomic.Int64
	scoringErrors   atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSampleCount sets how many profiles a run generates.
func WithSampleCount(n int) Option {
	return func(s *Service) {
		s.sampleCount = n
	}
}

// WithSeed sets the master seed of generation runs.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithEpsilon sets the diagonal regularization of the correlation matrix.
func WithEpsilon(eps float64) Option {
	return func(s *Service) {
		if eps >= 0 {
			s.epsilon = eps
		}
	}
}

// WithVarianceFloor lets zero-variance reference features through with the
// given variance instead of failing the run.
func WithVarianceFloor(v float64) Option {
	return func(s *Service) {
		if v >= 0 {
			s.varianceFloor = v
		}
	}
}

// WithBatchSize sets the number of profiles per batch.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDomains sets the feature domain table.
func WithDomains(t constraints.Table) Option {
	return func(s *Service) {
		s.domains = t
	}
}

// WithFormula selects the scoring formula.
func WithFormula(f scoring.Formula) Option {
	return func(s *Service) {
		s.formula = f
	}
}

// WithWeights overrides the formula's default weights.
func WithWeights(w scoring.Weights) Option {
	return func(s *Service) {
		s.weights = &w
	}
}

// WithIDPrefix sets the student id prefix.
func WithIDPrefix(prefix string) Option {
	return func(s *Service) {
		s.idPrefix = prefix
	}
}

// WithIDWidth sets the minimum width of the id sequence number.
func WithIDWidth(width int) Option {
	return func(s *Service) {
		if width > 0 {
			s.idWidth = width
		}
	}
}

// WithScorePrecision sets the decimals scores are rounded to before they
// are classified.
func WithScorePrecision(p int) Option {
	return func(s *Service) {
		s.scorePrecision = p
	}
}

// WithCorrelationTolerance sets the correlation distance above which a run
// report carries a warning.
func WithCorrelationTolerance(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.tolerance = t
		}
	}
}

// WithStore persists generated runs.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// New constructs a Service. It fails when the scoring configuration is
// invalid.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		sampleCount:    DefaultSampleCount,
		epsilon:        sampler.DefaultEpsilon,
		batchSize:      DefaultBatchSize,
		workerCount:    runtime.NumCPU(),
		domains:        constraints.DefaultTable(),
		formula:        scoring.Hybrid,
		idPrefix:       profile.DefaultPrefix,
		idWidth:        profile.DefaultWidth,
		scorePrecision: profile.DefaultScorePrecision,
		tolerance:      validation.DefaultTolerance,
		startedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	engineOpts := []scoring.Option{scoring.WithFormula(s.formula), scoring.WithDomains(s.domains)}
	if s.weights != nil {
		engineOpts = append(engineOpts, scoring.WithWeights(*s.weights))
	}
	engine, err := scoring.NewEngine(engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	s.engine = engine
	return s, nil
}

// Engine returns the scoring engine.
func (s *Service) Engine() *scoring.Engine { return s.engine }

// Domains returns the feature domain table.
func (s *Service) Domains() constraints.Table { return s.domains }

// ScorePrecision returns the decimals scores are rounded to.
func (s *Service) ScorePrecision() int { return s.scorePrecision }

func (s *Service) assembler() *profile.Assembler {
	return profile.NewAssembler(s.engine,
		profile.WithIDPrefix(s.idPrefix),
		profile.WithIDWidth(s.idWidth),
		profile.WithScorePrecision(s.scorePrecision),
	)
}

// ScoreResult is the outcome of scoring one record.
type ScoreResult struct {
	Score      float64
	Level      model.MasteryLevel
	Components scoring.Components
}

// Score validates v, computes its mastery score rounded to the configured
// precision, and classifies it.
func (s *Service) Score(ctx context.Context, v model.FeatureVector) (ScoreResult, error) {
	start := time.Now()
	s.scoringRequests.Add(1)
	metrics.RecordScoringRequest()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	b, err := s.engine.Breakdown(v)
	if err != nil {
		s.scoringErrors.Add(1)
		metrics.RecordScoringError()
		return ScoreResult{}, err
	}
	score := scoring.Round(b.Score, s.scorePrecision)
	level, err := scoring.Classify(score)
	if err != nil {
		s.scoringErrors.Add(1)
		metrics.RecordScoringError()
		return ScoreResult{}, err
	}
	metrics.RecordLevelAssigned(level.String())
	return ScoreResult{Score: score, Level: level, Components: b.Components}, nil
}

// Classify maps a score to its mastery level.
func (s *Service) Classify(_ context.Context, score float64) (model.MasteryLevel, error) {
	return scoring.Classify(score)
}

// BatchRecord is one input of ScoreBatch. ID may be empty.
type BatchRecord struct {
	ID       string
	Features model.FeatureVector
}

// BatchResult is the outcome for one BatchRecord; Err is set when the record
// was not scored.
type BatchResult struct {
	ID string
	ScoreResult
	Err error
}

// ScoreBatch scores records independently, in order. A record whose id
// repeats an earlier scored one in the batch fails with ErrDuplicateID. A
// record that fails validation does not claim its id.
func (s *Service) ScoreBatch(ctx context.Context, records []BatchRecord) ([]BatchResult, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(len(records)))
	out := make([]BatchResult, len(records))
	failed := 0
	for i, r := range records {
		out[i].ID = r.ID
		if r.ID != "" && seen.SeenAndRecord(r.ID) {
			out[i].Err = fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
			failed++
			continue
		}
		res, err := s.Score(ctx, r.Features)
		if err != nil {
			if r.ID != "" {
				seen.Forget(r.ID)
			}
			out[i].Err = err
			failed++
			continue
		}
		out[i].ScoreResult = res
	}
	s.logger.Debug(ctx, "scored batch",
		logger.Int("records", len(records)),
		logger.Int("unique_ids", seen.Size()),
		logger.Int("failed", failed),
	)
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	lastRun := s.lastRunID
	s.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(goroutines)

	stats := map[string]interface{}{
		"uptime_seconds":     int64(time.Since(s.startedAt).Seconds()),
		"formula":            string(s.engine.Formula()),
		"epsilon":            s.epsilon,
		"sample_count":       s.sampleCount,
		"batch_size":         s.batchSize,
		"worker_count":       s.workerCount,
		"runs":               s.runs.Load(),
		"profiles_generated": s.generated.Load(),
		"records_rejected":   s.rejected.Load(),
		"scoring_requests":   s.scoringRequests.Load(),
		"scoring_errors":     s.scoringErrors.Load(),
		"goroutines":         goroutines,
		"memory_bytes":       mem.Alloc,
	}
	if lastRun != "" {
		stats["last_run_id"] = lastRun
	}
	return stats
}

// ListRuns returns the most recent stored runs.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]repository.RunRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListRuns(ctx, limit)
}

// Close releases the run store.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidFeature):
		return "invalid_feature"
	case errors.Is(err, scoring.ErrScoreOutOfRange):
		return "score_out_of_range"
	case errors.Is(err, ErrDuplicateID):
		return "duplicate_id"
	default:
		return "other"
	}
}
