package metrics

import "github.com/LavishGent/holdfast/internal/types"

// NoOpSink discards everything. It is used when metrics are disabled.
type NoOpSink struct{}

func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

func (NoOpSink) Count(name string, value int64, tags ...string)       {}
func (NoOpSink) Histogram(name string, value float64, tags ...string) {}
func (NoOpSink) Gauge(name string, value float64, tags ...string)     {}
func (NoOpSink) Close() error                                         { return nil }

var _ types.TelemetrySink = NoOpSink{}
