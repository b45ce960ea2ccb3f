// Package watchdog runs the background health-supervision loop: restart
// the capture helper on death, reset the interface on frame starvation,
// warn on sink buffer bloat, detect a stalled pipeline, and exit the
// process on memory pressure so an external supervisor (systemd) restarts
// it clean. Uses the same context.Context-driven loop shape as
// internal/hopper.
package watchdog

import (
	"context"
	"sync"
	"time"

	"nozyme-tap/internal/logger"
	"nozyme-tap/internal/sink"
	"nozyme-tap/internal/syshealth"
)

// Capture is the subset of internal/capture.Capture the watchdog needs.
type Capture interface {
	IsRunning() bool
	SecondsSinceLastLine() float64
	Start() error
	Stop() error
	LinesRead() int64
}

// InterfaceResetter re-enables monitor mode and retunes to the pinned
// recovery channel after a starvation event. cmd/tap wires this to its
// radioTuner: internal/capture.EnsureMonitorMode plus internal/netlink's
// Driver and subprocess fallback.
type InterfaceResetter interface {
	ResetInterface(ctx context.Context) error
}

// Config bundles the watchdog's tunable thresholds, all sourced from
// internal/config.Config.
type Config struct {
	CheckIntervalS         float64
	StarvationTimeoutS     float64
	RestartDelayS          float64
	BufferWarnThreshold    int
	MemoryPercentThreshold float64
}

// Stats is a snapshot of the watchdog's lifetime recovery counters.
type Stats struct {
	Restarts         int64
	InterfaceResets  int64
	StarvationEvents int64
	BufferWarnings   int64
	PipelineStalls   int64
	MemoryKills      int64
}

// Watchdog holds borrowed references only — it never owns the capture
// supervisor, sink, or interface resetter it watches.
type Watchdog struct {
	capture   Capture
	resetter  InterfaceResetter
	sink      sink.Sink
	onRestart func()
	cfg       Config

	// shutdown is invoked under memory pressure instead of os.Kill, so the
	// caller's own graceful-shutdown path runs (drains goroutines, closes
	// the netlink socket) rather than an abrupt process kill.
	shutdown func()

	mu               sync.Mutex
	stats            Stats
	restarting       bool
	lastFramesCount  int64
	lastLinesRead    int64
	lastThroughputAt time.Time
}

// New builds a Watchdog. sink may be nil if no downstream transport is
// wired yet, in which case checks 3 and 4 are skipped.
func New(capture Capture, resetter InterfaceResetter, snk sink.Sink, cfg Config, onRestart, shutdown func()) *Watchdog {
	return &Watchdog{
		capture:   capture,
		resetter:  resetter,
		sink:      snk,
		cfg:       cfg,
		onRestart: onRestart,
		shutdown:  shutdown,
	}
}

// Run executes the monitor loop until ctx is canceled. Intended to be
// called in its own goroutine.
func (w *Watchdog) Run(ctx context.Context) {
	w.mu.Lock()
	w.lastThroughputAt = time.Now()
	w.mu.Unlock()

	interval := time.Duration(w.cfg.CheckIntervalS * float64(time.Second))
	if interval <= 0 {
		interval = 2 * time.Second
	}

	logger.Info("watchdog started (check_interval=%s, starvation_timeout=%.0fs)", interval, w.cfg.StarvationTimeoutS)

	for {
		if !sleepCtx(ctx, interval) {
			return
		}
		if !w.runChecksGuarded(ctx) {
			return
		}
	}
}

// runChecksGuarded recovers a panic from runChecks, logs it, and sleeps 1s
// as a cooldown so a misbehaving Capture/Sink/syshealth call can't spin the
// watchdog in a tight error loop. Returns false only when ctx is canceled
// during that cooldown sleep.
func (w *Watchdog) runChecksGuarded(ctx context.Context) (cont bool) {
	cont = true
	defer func() {
		if r := recover(); r != nil {
			logger.Error("watchdog: recovered panic in check loop: %v", r)
			cont = sleepCtx(ctx, time.Second)
		}
	}()
	w.runChecks(ctx)
	return cont
}

func (w *Watchdog) runChecks(ctx context.Context) {
	// Check 1: helper liveness. Check 2 (starvation) only runs when the
	// helper IS running — a dead helper already implies
	// seconds_since_last_line is climbing, and restarting it once is enough.
	if !w.capture.IsRunning() {
		logger.Warn("watchdog: tshark is not running, restarting")
		w.restartCapture(ctx)
	} else if secs := w.capture.SecondsSinceLastLine(); secs > w.cfg.StarvationTimeoutS {
		logger.Warn("watchdog: packet starvation, no frames for %.0fs", secs)
		w.mu.Lock()
		w.stats.StarvationEvents++
		w.mu.Unlock()
		w.resetInterface(ctx)
		w.restartCapture(ctx)
	}

	// Check 3: sink buffer depth.
	if w.sink != nil {
		st := w.sink.Stats()
		if st.BufferedCount > w.cfg.BufferWarnThreshold {
			w.mu.Lock()
			w.stats.BufferWarnings++
			w.mu.Unlock()
			logger.Warn("watchdog: sink buffer high: %d messages (%d bytes)", st.BufferedCount, st.BufferedBytes)
		}

		// Check 4: pipeline stall, gated by both a >=10s measurement
		// interval and the helper having advanced >100 lines, so normal
		// frame filtering is never mistaken for a stall.
		w.checkPipelineThroughput(st)
	}

	// Check 5: memory pressure.
	w.checkMemoryPressure()
}

func (w *Watchdog) checkPipelineThroughput(st sink.SinkStats) {
	now := time.Now()

	w.mu.Lock()
	elapsed := now.Sub(w.lastThroughputAt)
	if elapsed < 10*time.Second {
		w.mu.Unlock()
		return
	}
	linesRead := w.capture.LinesRead()
	lineDelta := linesRead - w.lastLinesRead
	framesStuck := st.FramesProcessed == w.lastFramesCount
	stall := lineDelta > 100 && framesStuck && elapsed > 30*time.Second
	if stall {
		w.stats.PipelineStalls++
	}
	w.lastFramesCount = st.FramesProcessed
	w.lastLinesRead = linesRead
	w.lastThroughputAt = now
	w.mu.Unlock()

	if stall {
		logger.Warn("watchdog: pipeline may be stalled: tshark advanced %d lines but sink stuck at %d frames for %s",
			lineDelta, st.FramesProcessed, elapsed.Round(time.Second))
	}
}

func (w *Watchdog) checkMemoryPressure() {
	health := syshealth.Get()
	if health.MemoryPercent <= w.cfg.MemoryPercentThreshold {
		return
	}
	w.mu.Lock()
	w.stats.MemoryKills++
	w.mu.Unlock()
	logger.Error("watchdog: memory pressure %.1f%% exceeds threshold %.1f%%, shutting down for restart",
		health.MemoryPercent, w.cfg.MemoryPercentThreshold)
	if w.shutdown != nil {
		w.shutdown()
	}
}

// restartCapture stops and restarts the helper. A restarting flag under
// the watchdog's own lock makes a second concurrent restart a no-op —
// otherwise a caller noticing the same EOF independently could race this
// restart and double-spawn the helper.
func (w *Watchdog) restartCapture(ctx context.Context) {
	w.mu.Lock()
	if w.restarting {
		w.mu.Unlock()
		return
	}
	w.restarting = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.restarting = false
		w.mu.Unlock()
	}()

	_ = w.capture.Stop()

	delay := time.Duration(w.cfg.RestartDelayS * float64(time.Second))
	if !sleepCtx(ctx, delay) {
		return
	}

	if err := w.capture.Start(); err != nil {
		logger.Error("watchdog: failed to restart tshark: %v", err)
		return
	}
	w.mu.Lock()
	w.stats.Restarts++
	w.mu.Unlock()
	logger.Info("watchdog: tshark restarted")
	if w.onRestart != nil {
		w.onRestart()
	}
}

func (w *Watchdog) resetInterface(ctx context.Context) {
	w.mu.Lock()
	w.stats.InterfaceResets++
	w.mu.Unlock()
	if w.resetter == nil {
		return
	}
	if err := w.resetter.ResetInterface(ctx); err != nil {
		logger.Error("watchdog: interface reset failed: %v", err)
	}
}

// StatsNow returns a copy of the watchdog's lifetime recovery counters.
func (w *Watchdog) StatsNow() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
