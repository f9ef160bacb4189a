package constraints

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidDomain = errors.New("invalid feature domain")
)
