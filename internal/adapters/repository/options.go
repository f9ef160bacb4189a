package repository

import "time"

type options struct {
	busyTimeout time.Duration
}

func defaultOptions() options {
	return options{busyTimeout: 5 * time.Second}
}

// Option applies a configuration option to Open.
type Option func(*options)

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}
