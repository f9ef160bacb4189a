// Package repository persists generation runs and their profiles.
package repository

import (
	"context"
	"time"

	"github.com/okian/xscaffold/internal/domain/model"
)

// RunRecord describes one generation run.
type RunRecord struct {
	ID                  string    `db:"id" json:"id"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	Seed                uint64    `db:"-" json:"seed"`
	Epsilon             float64   `db:"epsilon" json:"epsilon"`
	Formula             string    `db:"formula" json:"formula"`
	BatchSize           int       `db:"batch_size" json:"batch_size"`
	Requested           int       `db:"requested" json:"requested"`
	Generated           int       `db:"generated" json:"generated"`
	Rejected            int       `db:"rejected" json:"rejected"`
	ReferencePath       string    `db:"reference_path" json:"reference_path"`
	OutputPath          string    `db:"output_path" json:"output_path"`
	CorrelationDistance float64   `db:"correlation_distance" json:"correlation_distance"`
}

// Store reads and writes runs.
type Store interface {
	// SaveRun stores a run and its profiles atomically.
	SaveRun(ctx context.Context, run RunRecord, profiles []model.StudentProfile) error

	// ListRuns returns the most recent runs first, at most limit of them.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetRun returns one run or ErrNotFound.
	GetRun(ctx context.Context, id string) (RunRecord, error)

	// LoadProfiles returns the profiles of a run in id order.
	LoadProfiles(ctx context.Context, runID string) ([]model.StudentProfile, error)

	Close() error
}
