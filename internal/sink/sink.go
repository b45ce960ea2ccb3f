// Package sink implements the downstream publish(topic, payload) contract:
// the core's only outbound dependency, deliberately kept swappable behind
// the Sink interface so the classifier/hopper/watchdog never know whether
// messages are actually leaving the box.
//
// BufferSink is the default, always-in-module implementation. MangosSink
// (mangos.go) is the optional network-connected transport: auto-reconnect,
// a bounded oldest-first-eviction offline buffer, and FIFO replay on
// reconnect.
package sink

import (
	"encoding/json"
	"sync"
)

// SinkStats is a point-in-time snapshot of a Sink's counters. The watchdog
// reads BufferedCount for its buffer-bloat check and FramesProcessed for
// its pipeline-stall check; the heartbeat forwards the whole struct.
type SinkStats struct {
	BufferedCount   int
	BufferedBytes   int64
	Sent            int64
	Replayed        int64
	Errors          int64
	FramesProcessed int64
}

// Sink is the downstream transport contract: publish a topic/payload pair,
// expose stats. Implementations must never block the hot path — buffer
// instead of failing.
type Sink interface {
	Publish(topic string, payload map[string]any) error
	Stats() SinkStats
}

type bufferedMsg struct {
	topic string
	data  []byte
}

// BufferSink buffers every published message in a bounded, oldest-first
// ring; it never dials out. It satisfies the Sink contract on its own for
// deployments or tests that only need the watchdog's buffer-depth signal,
// and it's the base bounded buffer MangosSink layers its
// network connection on top of.
type BufferSink struct {
	mu       sync.Mutex
	maxLen   int
	buf      []bufferedMsg
	bufBytes int64
	stats    SinkStats
}

// NewBufferSink builds a BufferSink holding up to maxLen messages before it
// starts evicting the oldest. maxLen<=0 falls back to 1000.
func NewBufferSink(maxLen int) *BufferSink {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &BufferSink{maxLen: maxLen}
}

func (s *BufferSink) Publish(topic string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FramesProcessed++
	if len(s.buf) >= s.maxLen {
		evicted := s.buf[0]
		s.buf = s.buf[1:]
		s.bufBytes -= int64(len(evicted.data))
	}
	s.buf = append(s.buf, bufferedMsg{topic: topic, data: data})
	s.bufBytes += int64(len(data))
	return nil
}

// Stats returns a copy of the sink's counters plus the buffer's current
// depth, computed at read time rather than tracked incrementally.
func (s *BufferSink) Stats() SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.BufferedCount = len(s.buf)
	st.BufferedBytes = s.bufBytes
	return st
}

// drain removes and returns every buffered message, oldest first, clearing
// the buffer. Used by MangosSink to replay on reconnect.
func (s *BufferSink) drain() []bufferedMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	s.bufBytes = 0
	return out
}

func (s *BufferSink) requeueFront(msgs []bufferedMsg) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var bytes int64
	for _, m := range msgs {
		bytes += int64(len(m.data))
	}
	s.buf = append(append([]bufferedMsg(nil), msgs...), s.buf...)
	s.bufBytes += bytes
	for len(s.buf) > s.maxLen {
		evicted := s.buf[0]
		s.buf = s.buf[1:]
		s.bufBytes -= int64(len(evicted.data))
	}
}
