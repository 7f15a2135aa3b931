package atomicvec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordAppend is called after each append operation.
	RecordAppend(duration time.Duration, err error)

	// RecordRead is called after each read operation.
	RecordRead(duration time.Duration, err error)

	// RecordWrite is called after each overwrite operation.
	RecordWrite(duration time.Duration, err error)

	// RecordSave is called after each snapshot save.
	// count is the number of elements persisted.
	RecordSave(count uint64, duration time.Duration, err error)

	// RecordLoad is called after each snapshot load.
	// count is the number of elements reconstructed.
	RecordLoad(count uint64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(time.Duration, error)       {}
func (NoopMetricsCollector) RecordRead(time.Duration, error)         {}
func (NoopMetricsCollector) RecordWrite(time.Duration, error)        {}
func (NoopMetricsCollector) RecordSave(uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordLoad(uint64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	ReadCount        atomic.Int64
	ReadErrors       atomic.Int64
	ReadTotalNanos   atomic.Int64
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteTotalNanos  atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	SaveItems        atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
	LoadItems        atomic.Int64
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(count uint64, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveItems.Add(int64(count))
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(count uint64, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadItems.Add(int64(count))
	if err != nil {
		b.LoadErrors.Add(1)
	}
}
