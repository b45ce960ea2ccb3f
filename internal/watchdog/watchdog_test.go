package watchdog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nozyme-tap/internal/sink"
)

type fakeCapture struct {
	mu            sync.Mutex
	running       bool
	secsSinceLine float64
	lines         int64
	startCalls    int
	stopCalls     int
	startErr      error
}

func (f *fakeCapture) IsRunning() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.running }
func (f *fakeCapture) SecondsSinceLastLine() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.secsSinceLine
}
func (f *fakeCapture) LinesRead() int64 { f.mu.Lock(); defer f.mu.Unlock(); return f.lines }
func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}
func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.running = false
	return nil
}

type fakeResetter struct {
	calls int
	err   error
}

func (r *fakeResetter) ResetInterface(ctx context.Context) error {
	r.calls++
	return r.err
}

func testConfig() Config {
	return Config{
		CheckIntervalS:         0,
		StarvationTimeoutS:     5,
		RestartDelayS:          0,
		BufferWarnThreshold:    10,
		MemoryPercentThreshold: 99.9,
	}
}

func TestDeadHelperTriggersRestartNotStarvation(t *testing.T) {
	capt := &fakeCapture{running: false}
	w := New(capt, nil, nil, testConfig(), nil, nil)

	w.runChecks(context.Background())

	assert.Equal(t, 1, capt.startCalls)
	assert.Equal(t, int64(1), w.StatsNow().Restarts)
	assert.Equal(t, int64(0), w.StatsNow().StarvationEvents, "starvation check must not fire when the helper is already being restarted for being dead")
}

func TestStarvationTriggersResetAndRestart(t *testing.T) {
	capt := &fakeCapture{running: true, secsSinceLine: 999}
	reset := &fakeResetter{}
	w := New(capt, reset, nil, testConfig(), nil, nil)

	w.runChecks(context.Background())

	assert.Equal(t, int64(1), w.StatsNow().StarvationEvents)
	assert.Equal(t, int64(1), w.StatsNow().InterfaceResets)
	assert.Equal(t, 1, reset.calls)
	assert.Equal(t, 1, capt.startCalls)
}

func TestHealthyHelperDoesNothing(t *testing.T) {
	capt := &fakeCapture{running: true, secsSinceLine: 1}
	w := New(capt, nil, nil, testConfig(), nil, nil)

	w.runChecks(context.Background())

	st := w.StatsNow()
	assert.Equal(t, int64(0), st.Restarts)
	assert.Equal(t, int64(0), st.StarvationEvents)
}

func TestBufferWarningCountsOnceOverThreshold(t *testing.T) {
	capt := &fakeCapture{running: true}
	snk := sink.NewBufferSink(1000)
	for i := 0; i < 20; i++ {
		require.NoError(t, snk.Publish("uav", map[string]any{"i": i}))
	}
	w := New(capt, nil, snk, testConfig(), nil, nil)

	w.runChecks(context.Background())

	assert.Equal(t, int64(1), w.StatsNow().BufferWarnings)
}

func TestRestartIsANoOpWhileAlreadyRestarting(t *testing.T) {
	capt := &fakeCapture{running: false}
	w := New(capt, nil, nil, testConfig(), nil, nil)
	w.restarting = true

	w.restartCapture(context.Background())

	assert.Equal(t, 0, capt.startCalls, "restartCapture must no-op while a restart is already in flight")
}

func TestMemoryPressureInvokesShutdown(t *testing.T) {
	capt := &fakeCapture{running: true}
	var shutdownCalled bool
	cfg := testConfig()
	cfg.MemoryPercentThreshold = -1 // force the check to fire regardless of actual host memory
	w := New(capt, nil, nil, cfg, nil, func() { shutdownCalled = true })

	w.checkMemoryPressure()

	assert.True(t, shutdownCalled)
	assert.Equal(t, int64(1), w.StatsNow().MemoryKills)
}
