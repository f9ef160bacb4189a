package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds for dataset I/O.
var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrEmptyTable        = errors.New("dataset has no header row")
	ErrMissingColumns    = errors.New("dataset is missing required columns")
)

// MissingColumnsError names the required feature columns absent from a
// header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }
