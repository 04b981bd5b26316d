package metrics

import (
	"errors"

	"github.com/LavishGent/holdfast/internal/types"
)

// MultiSink fans every sample out to several sinks in order.
type MultiSink []types.TelemetrySink

// NewMultiSink returns the single sink when given one, and a NoOpSink when
// given none.
func NewMultiSink(sinks ...types.TelemetrySink) types.TelemetrySink {
	switch len(sinks) {
	case 0:
		return NewNoOpSink()
	case 1:
		return sinks[0]
	default:
		return MultiSink(sinks)
	}
}

func (m MultiSink) Count(name string, value int64, tags ...string) {
	for _, s := range m {
		s.Count(name, value, tags...)
	}
}

func (m MultiSink) Histogram(name string, value float64, tags ...string) {
	for _, s := range m {
		s.Histogram(name, value, tags...)
	}
}

func (m MultiSink) Gauge(name string, value float64, tags ...string) {
	for _, s := range m {
		s.Gauge(name, value, tags...)
	}
}

// Close closes every sink and joins their errors.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
