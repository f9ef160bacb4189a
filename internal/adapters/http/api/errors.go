package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/xscaffold/internal/domain/model"
	"github.com/okian/xscaffold/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInternal      = errors.New("internal error")
)

// Error tags a failure with the operation that produced it and its kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps a domain error to the kind, status and code reported to
// clients.
func classify(op string, err error) (int, string, error) {
	switch {
	case errors.Is(err, model.ErrInvalidFeature):
		return http.StatusUnprocessableEntity, "invalid_feature", WrapKind(op, ErrInvalidRecord, err)
	case errors.Is(err, scoring.ErrScoreOutOfRange):
		return http.StatusUnprocessableEntity, "score_out_of_range", WrapKind(op, ErrInvalidRecord, err)
	default:
		return http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err)
	}
}
