package scanning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSinkDeliversLines(t *testing.T) {
	sink := NewChannelSink(8)
	sink.Emit(Line{UnitID: "u1", Target: "10.0.0.0/24", Text: "first"})
	sink.Emit(Line{UnitID: "u1", Target: "10.0.0.0/24", Text: "second"})
	sink.Close()

	var texts []string
	for line := range sink.Lines() {
		texts = append(texts, line.Text)
	}
	assert.Equal(t, []string{"first", "second"}, texts)
	assert.Zero(t, sink.Dropped())
}

func TestChannelSinkNeverBlocks(t *testing.T) {
	sink := NewChannelSink(2)

	// No consumer; emits beyond the buffer must drop, not block.
	for i := 0; i < 10; i++ {
		sink.Emit(Line{Text: "line"})
	}
	assert.Equal(t, int64(8), sink.Dropped())

	sink.Close()
	count := 0
	for range sink.Lines() {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestChannelSinkDefaultBuffer(t *testing.T) {
	sink := NewChannelSink(0)
	require.NotNil(t, sink)
	sink.Emit(Line{Text: "x"})
	assert.Zero(t, sink.Dropped())
}

func TestFuncSink(t *testing.T) {
	var got []Line
	sink := FuncSink(func(line Line) { got = append(got, line) })
	sink.Emit(Line{Text: "a"})
	sink.Emit(Line{Text: "b"})
	require.Len(t, got, 2)
}

func TestDiscardSink(t *testing.T) {
	assert.NotPanics(t, func() {
		DiscardSink().Emit(Line{Text: "ignored"})
	})
}
