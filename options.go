package kcheck

import "go.uber.org/zap"

// Option configures loading, reading and generating operations.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used to report skipped input and counts.
// By default nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}
