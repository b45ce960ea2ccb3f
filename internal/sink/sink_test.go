package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSinkEvictsOldestFirst(t *testing.T) {
	s := NewBufferSink(2)
	require.NoError(t, s.Publish("uav", map[string]any{"n": 1}))
	require.NoError(t, s.Publish("uav", map[string]any{"n": 2}))
	require.NoError(t, s.Publish("uav", map[string]any{"n": 3}))

	st := s.Stats()
	assert.Equal(t, 2, st.BufferedCount)
	assert.Equal(t, int64(3), st.FramesProcessed)

	buf := s.drain()
	require.Len(t, buf, 2)
	assert.Contains(t, string(buf[0].data), `"n":2`)
	assert.Contains(t, string(buf[1].data), `"n":3`)
}

func TestBufferSinkDefaultsMaxLen(t *testing.T) {
	s := NewBufferSink(0)
	assert.Equal(t, 1000, s.maxLen)
}

func TestRequeueFrontRestoresFIFOOrderAndRespectsBound(t *testing.T) {
	s := NewBufferSink(3)
	require.NoError(t, s.Publish("uav", map[string]any{"n": 1}))
	pending := s.drain()

	require.NoError(t, s.Publish("uav", map[string]any{"n": 2}))
	require.NoError(t, s.Publish("uav", map[string]any{"n": 3}))
	require.NoError(t, s.Publish("uav", map[string]any{"n": 4}))

	s.requeueFront(pending)

	st := s.Stats()
	assert.Equal(t, 3, st.BufferedCount, "bound must still hold after requeue")

	buf := s.drain()
	require.Len(t, buf, 3)
	assert.Contains(t, string(buf[0].data), `"n":2`)
	assert.Contains(t, string(buf[1].data), `"n":3`)
	assert.Contains(t, string(buf[2].data), `"n":4`)
}
