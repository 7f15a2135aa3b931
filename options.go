package atomicvec

import (
	"github.com/hupe1980/atomicvec/resource"
)

type options[T any] struct {
	serde           Serde[T]
	stripes         int
	loadConcurrency int
	controller      *resource.Controller
	logger          *Logger
	metrics         MetricsCollector
}

// Option configures a Vector at construction time.
type Option[T any] func(*options[T])

// WithSerde configures the codec used by Save and Load. A vector without a
// serde supports every operation except persistence.
func WithSerde[T any](s Serde[T]) Option[T] {
	return func(o *options[T]) {
		o.serde = s
	}
}

// WithStripes configures the number of occupancy counters in the read
// barrier. More stripes mean less false sharing between concurrent readers
// and a slightly longer drain for writers. If n <= 0, the default (128)
// is used.
func WithStripes[T any](n int) Option[T] {
	return func(o *options[T]) {
		o.stripes = n
	}
}

// WithLoadConcurrency caps the number of decoder goroutines Load spawns.
// If n <= 0, one worker per available CPU is used.
func WithLoadConcurrency[T any](n int) Option[T] {
	return func(o *options[T]) {
		o.loadConcurrency = n
	}
}

// WithController attaches a resource controller. The memory budget is
// charged for every bucket allocation and the I/O limiter paces snapshot
// writes. A nil controller enforces nothing.
func WithController[T any](c *resource.Controller) Option[T] {
	return func(o *options[T]) {
		o.controller = c
	}
}

// WithLogger sets the logger used by Save, Load and Close.
// If nil, logging is disabled.
func WithLogger[T any](l *Logger) Option[T] {
	return func(o *options[T]) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. If nil, no metrics are recorded
// and the hot paths skip timing entirely.
func WithMetrics[T any](m MetricsCollector) Option[T] {
	return func(o *options[T]) {
		o.metrics = m
	}
}
