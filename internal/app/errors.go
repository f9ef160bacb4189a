package service

import "errors"

// Sentinel error kinds for the service.
var (
	ErrInvalidSampleCount = errors.New("sample count must be positive")
	ErrNoStore            = errors.New("no run store configured")
	ErrDuplicateID        = errors.New("duplicate student id")
	ErrEmptyBatch         = errors.New("empty batch")
)
