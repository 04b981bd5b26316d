package metrics

import (
	"log/slog"

	"github.com/LavishGent/holdfast/internal/types"
)

// LoggingSink writes every metric as a debug log line.
type LoggingSink struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingSink(logger *slog.Logger, baseTags ...string) *LoggingSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingSink{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (s *LoggingSink) Count(name string, value int64, tags ...string) {
	s.logger.Debug("count",
		"name", name,
		"value", value,
		"tags", MergeTags(s.baseTags, tags),
	)
}

func (s *LoggingSink) Histogram(name string, value float64, tags ...string) {
	s.logger.Debug("histogram",
		"name", name,
		"value", value,
		"tags", MergeTags(s.baseTags, tags),
	)
}

func (s *LoggingSink) Gauge(name string, value float64, tags ...string) {
	s.logger.Debug("gauge",
		"name", name,
		"value", value,
		"tags", MergeTags(s.baseTags, tags),
	)
}

// Close does nothing.
func (s *LoggingSink) Close() error {
	return nil
}

var _ types.TelemetrySink = (*LoggingSink)(nil)
