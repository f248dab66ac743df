package scanning

import (
	"sync/atomic"
)

// Line is one line of subprocess output attributed to its work unit.
type Line struct {
	UnitID string
	Target string
	Text   string
}

// Sink receives live subprocess output. Emit is called once per line, in
// the order the subprocess produced them within a unit, and must be safe
// to call from any worker. Implementations must not block.
type Sink interface {
	Emit(line Line)
}

// FuncSink adapts a function to the Sink interface.
type FuncSink func(line Line)

// Emit implements the Sink interface.
func (f FuncSink) Emit(line Line) {
	f(line)
}

// discardSink drops all output.
type discardSink struct{}

func (discardSink) Emit(Line) {}

// DiscardSink returns a sink that ignores all output.
func DiscardSink() Sink {
	return discardSink{}
}

// ChannelSink forwards output lines to a bounded channel without ever
// blocking a worker. Lines that arrive while the channel is full are
// counted and dropped.
type ChannelSink struct {
	lines   chan Line
	dropped int64
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelSink{
		lines: make(chan Line, buffer),
	}
}

// Emit implements the Sink interface.
func (s *ChannelSink) Emit(line Line) {
	select {
	case s.lines <- line:
	default:
		atomic.AddInt64(&s.dropped, 1)
	}
}

// Lines returns the channel consumers read from.
func (s *ChannelSink) Lines() <-chan Line {
	return s.lines
}

// Dropped returns how many lines were discarded because the consumer
// fell behind.
func (s *ChannelSink) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Close closes the line channel. Call only after all workers have stopped
// emitting.
func (s *ChannelSink) Close() {
	close(s.lines)
}
