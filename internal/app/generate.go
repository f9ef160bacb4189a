package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xscaffold/internal/adapters/dataset"
	"github.com/okian/xscaffold/internal/adapters/mq/queue"
	"github.com/okian/xscaffold/internal/adapters/mq/worker"
	"github.com/okian/xscaffold/internal/adapters/repository"
	"github.com/okian/xscaffold/internal/domain/dedupe"
	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/profile"
	"github.com/okian/xscaffold/internal/domain/reference"
	"github.com/okian/xscaffold/internal/domain/sampler"
	"github.com/okian/xscaffold/internal/domain/scoring"
	"github.com/okian/xscaffold/internal/validation"
	"github.com/okian/xscaffold/pkg/logger"
	"github.com/okian/xscaffold/pkg/metrics"
)

// Run is the outcome of one generation run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Seed      uint64
	Epsilon   float64
	Formula   scoring.Formula
	BatchSize int
	Requested int

	Profiles []model.StudentProfile
	Rejected []*profile.RecordError
	Clamped  int
	Report   validation.Report
	Duration time.Duration
}

// Record returns the persisted form of the run.
func (r *Run) Record(referencePath, outputPath string) repository.RunRecord {
	return repository.RunRecord{
		ID:                  r.ID,
		CreatedAt:           r.CreatedAt,
		Seed:                r.Seed,
		Epsilon:             r.Epsilon,
		Formula:             string(r.Formula),
		BatchSize:           r.BatchSize,
		Requested:           r.Requested,
		Generated:           len(r.Profiles),
		Rejected:            len(r.Rejected),
		ReferencePath:       referencePath,
		OutputPath:          outputPath,
		CorrelationDistance: r.Report.CorrelationDistance,
	}
}

type batchResult struct {
	profiles []model.StudentProfile
	rejected []*profile.RecordError
	moments  validation.Moments
	clamped  int
}

// Generate draws the configured number of profiles reproducing the
// statistics of reference. The dataset depends only on the reference, the
// seed and the configuration, never on the worker count. Any failure aborts
// the run and no partial dataset is returned.
func (s *Service) Generate(ctx context.Context, ref []model.FeatureVector) (*Run, error) {
	start := time.Now()
	run, err := s.generate(ctx, ref)
	metrics.RecordRunDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordRun("failed")
		s.logger.Error(ctx, "generation failed", logger.Error(err))
		return nil, err
	}
	run.Duration = time.Since(start)
	metrics.RecordRun("succeeded")

	s.runs.Add(1)
	s.generated.Add(int64(len(run.Profiles)))
	s.rejected.Add(int64(len(run.Rejected)))
	s.mu.Lock()
	s.lastRunID = run.ID
	s.mu.Unlock()

	s.logger.Info(ctx, "generation finished",
		logger.String("run_id", run.ID),
		logger.Int("generated", len(run.Profiles)),
		logger.Int("rejected", len(run.Rejected)),
		logger.Int("clamped", run.Clamped),
		logger.Float64("correlation_distance", run.Report.CorrelationDistance),
		logger.Duration("took", run.Duration),
	)
	run.Report.Log(ctx, s.logger)
	return run, nil
}

func (s *Service) generate(ctx context.Context, ref []model.FeatureVector) (*Run, error) {
	if s.sampleCount <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleCount, s.sampleCount)
	}

	var refOpts []reference.Option
	if s.varianceFloor > 0 {
		refOpts = append(refOpts, reference.WithVarianceFloor(s.varianceFloor))
	}
	stats, err := reference.Extract(ref, refOpts...)
	if err != nil {
		return nil, fmt.Errorf("extract reference: %w", err)
	}
	smp, err := sampler.New(stats, sampler.WithEpsilon(s.epsilon))
	if err != nil {
		return nil, fmt.Errorf("factor correlation: %w", err)
	}

	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Seed:      s.seed,
		Epsilon:   smp.Epsilon(),
		Formula:   s.engine.Formula(),
		BatchSize: s.batchSize,
		Requested: s.sampleCount,
	}
	s.logger.Info(ctx, "generation started",
		logger.String("run_id", run.ID),
		logger.Int("reference_records", stats.SampleSize()),
		logger.Int("requested", s.sampleCount),
		logger.Uint64("seed", s.seed),
		logger.Float64("epsilon", run.Epsilon),
		logger.String("formula", string(run.Formula)),
	)

	jobs := queue.Plan(s.sampleCount, s.batchSize)
	results := make([]batchResult, len(jobs))
	asm := s.assembler()
	total := s.sampleCount

	process := worker.ProcessorFunc(func(ctx context.Context, job queue.Job) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := smp.Sample(sampler.NewStream(s.seed, uint64(job.Index)), job.Count)
		res := &results[job.Index]
		vectors := make([]model.FeatureVector, len(raw))
		for i, v := range raw {
			res.moments.Add(v)
			for _, f := range s.domains.OutOfRange(v) {
				metrics.RecordValueClamped(f.String())
				res.clamped++
			}
			vectors[i] = s.domains.Enforce(v)
		}
		res.profiles, res.rejected = asm.AssembleRange(vectors, job.Offset, total)
		return nil
	})

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(jobs)))
	for _, j := range jobs {
		if !q.Enqueue(ctx, j) {
			return nil, fmt.Errorf("enqueue batch %d: %w", j.Index, context.Cause(ctx))
		}
	}
	_ = q.Close()
	s.logger.Debug(ctx, "batches queued",
		logger.Int("batches", q.Len(ctx)),
		logger.Int("batch_size", s.batchSize),
	)

	pool := worker.NewPool(s.workerCount, q, process, worker.WithLogger(s.logger))
	pool.Start(ctx)
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	// workers also stop quietly when the queue feed is cut by cancellation
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var moments validation.Moments
	run.Profiles = make([]model.StudentProfile, 0, total)
	for i := range results {
		r := &results[i]
		run.Profiles = append(run.Profiles, r.profiles...)
		run.Rejected = append(run.Rejected, r.rejected...)
		run.Clamped += r.clamped
		moments.Merge(&r.moments)
	}
	for _, p := range run.Profiles {
		metrics.RecordLevelAssigned(p.Level.String())
	}
	for _, re := range run.Rejected {
		metrics.RecordRecordRejected(rejectReason(re.Err))
		s.logger.Warn(ctx, "record rejected",
			logger.String("student_id", re.ID),
			logger.Error(re.Err),
		)
	}
	metrics.RecordProfilesGenerated(len(run.Profiles))

	distance := 0.0
	if moments.Count() >= 2 {
		if distance, err = moments.Distance(smp.Regularized()); err != nil {
			return nil, err
		}
	}
	run.Report = validation.Summarize(run.Profiles, len(run.Rejected), distance, s.tolerance, moments.Count())
	run.Report.RunID = run.ID
	return run, nil
}

// SaveRun stores run and its profiles.
func (s *Service) SaveRun(ctx context.Context, run *Run, referencePath, outputPath string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.SaveRun(ctx, run.Record(referencePath, outputPath), run.Profiles); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// ScoreRecords scores real records read from a file. Rows without an id get
// a positional one; invalid rows and repeated ids are skipped and reported.
func (s *Service) ScoreRecords(ctx context.Context, records []dataset.Record) ([]model.StudentProfile, []*profile.RecordError) {
	asm := s.assembler()
	width := asm.Width(len(records))
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(len(records)))

	profiles := make([]model.StudentProfile, 0, len(records))
	var rejected []*profile.RecordError
	for i, r := range records {
		id := r.ID
		if id == "" {
			id = profile.FormatID(s.idPrefix, width, i+1)
		}
		if seen.SeenAndRecord(id) {
			rejected = append(rejected, &profile.RecordError{Index: r.Row, ID: id, Err: fmt.Errorf("%w: %s", ErrDuplicateID, id)})
			continue
		}

		res, err := s.Score(ctx, r.Features)
		if err != nil {
			seen.Forget(id)
			rejected = append(rejected, &profile.RecordError{Index: r.Row, ID: id, Err: err})
			continue
		}
		profiles = append(profiles, model.StudentProfile{ID: id, Features: r.Features, Score: res.Score, Level: res.Level})
	}

	for _, re := range rejected {
		metrics.RecordRecordRejected(rejectReason(re.Err))
		s.logger.Warn(ctx, "row skipped",
			logger.Int("row", re.Index),
			logger.String("student_id", re.ID),
			logger.Error(re.Err),
		)
	}
	s.logger.Info(ctx, "records scored",
		logger.Int("scored", len(profiles)),
		logger.Int("skipped", len(rejected)),
	)
	return profiles, rejected
}
