package metrics

import (
	"time"

	"github.com/LavishGent/holdfast/internal/types"
)

// Timer measures one operation and records it as a histogram in
// milliseconds.
type Timer struct {
	sink  types.TelemetrySink
	name  string
	tags  []string
	start time.Time
}

func NewTimer(sink types.TelemetrySink, name string, tags ...string) *Timer {
	return &Timer{
		sink:  sink,
		name:  name,
		tags:  tags,
		start: time.Now(),
	}
}

// Stop records the elapsed time and returns it. Extra tags are appended to
// the ones given at creation.
func (t *Timer) Stop(tags ...string) time.Duration {
	d := time.Since(t.start)
	t.sink.Histogram(t.name, float64(d)/float64(time.Millisecond), MergeTags(t.tags, tags)...)
	return d
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
