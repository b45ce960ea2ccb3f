package sink

import (
	"fmt"
	"sync"
	"time"

	"nanomsg.org/go/mangos/v2"
	"nanomsg.org/go/mangos/v2/protocol/pub"
	_ "nanomsg.org/go/mangos/v2/transport/tcp"

	"nozyme-tap/internal/logger"
)

// sendRetryInterval is how often the drain loop retries a full backlog
// after a send failure.
const sendRetryInterval = 1 * time.Second

// MangosSink is the optional network-connected Sink: a PUB socket dialing
// out to a command-center SUB endpoint, with an offline buffer (BufferSink)
// and FIFO replay on reconnect. Frames are wire-framed as
// "<topic>\x00<json payload>" so a SUB-side prefix subscription on the
// topic still works without mangos's own multipart support.
type MangosSink struct {
	*BufferSink

	endpoint string
	sock     mangos.Socket

	mu             sync.Mutex
	connected      bool
	sent, replayed int64
	sendErrors     int64
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewMangosSink builds a MangosSink that will dial endpoint (e.g.
// "tcp://127.0.0.1:5590") once Start is called. bufferSize bounds the
// offline buffer exactly like BufferSink.
func NewMangosSink(endpoint string, bufferSize int) (*MangosSink, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("sink: new pub socket: %w", err)
	}
	return &MangosSink{
		BufferSink: NewBufferSink(bufferSize),
		endpoint:   endpoint,
		sock:       sock,
	}, nil
}

// Start dials the endpoint and begins the background drain loop that
// flushes the buffer as the connection allows. Dial failures are not fatal
// here; transport is a degraded-mode concern, never a startup abort — the
// drain loop just keeps retrying.
func (m *MangosSink) Start() error {
	if err := m.sock.Dial(m.endpoint); err != nil {
		logger.Warn("sink: dial %s failed, will keep buffering: %v", m.endpoint, err)
	} else {
		m.setConnected(true)
		logger.Info("sink: connected to %s", m.endpoint)
	}

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.drainLoop()
	return nil
}

// Stop closes the socket and waits for the drain loop to exit.
func (m *MangosSink) Stop() error {
	if m.stopCh != nil {
		close(m.stopCh)
		<-m.doneCh
	}
	return m.sock.Close()
}

func (m *MangosSink) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MangosSink) isConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Publish buffers the message (via the embedded BufferSink) immediately;
// the drain loop is solely responsible for actually sending it. This keeps
// Publish itself non-blocking regardless of socket state.
func (m *MangosSink) Publish(topic string, payload map[string]any) error {
	return m.BufferSink.Publish(topic, payload)
}

// drainLoop repeatedly empties the offline buffer over the wire. A failed
// send re-queues the whole remaining backlog at the front and backs off,
// so a dropped connection replays its full backlog in order once it comes
// back.
func (m *MangosSink) drainLoop() {
	defer close(m.doneCh)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.flush()
		}
	}
}

func (m *MangosSink) flush() {
	pending := m.BufferSink.drain()
	if len(pending) == 0 {
		return
	}

	for i, msg := range pending {
		frame := append([]byte(msg.topic+"\x00"), msg.data...)
		if err := m.sock.Send(frame); err != nil {
			m.setConnected(false)
			m.mu.Lock()
			m.sendErrors++
			m.mu.Unlock()
			m.BufferSink.requeueFront(pending[i:])
			time.Sleep(sendRetryInterval)
			return
		}
		wasReplay := i > 0
		m.setConnected(true)
		m.mu.Lock()
		m.sent++
		if wasReplay {
			m.replayed++
		}
		m.mu.Unlock()
	}
}

// Stats merges the offline-buffer counters (FramesProcessed, BufferedCount,
// BufferedBytes) with the connection-level counters this type tracks under
// its own lock.
func (m *MangosSink) Stats() SinkStats {
	st := m.BufferSink.Stats()
	m.mu.Lock()
	st.Sent = m.sent
	st.Replayed = m.replayed
	st.Errors += m.sendErrors
	m.mu.Unlock()
	return st
}
