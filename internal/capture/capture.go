// Package capture runs the tshark helper process and turns its NDJSON
// stdout into a line stream the classifier consumes. It is a thin domain
// layer over internal/process: capture owns the command line, the stop
// sequence tshark expects, and the line/restart/staleness counters the
// watchdog reads.
package capture

import (
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"nozyme-tap/internal/logger"
	"nozyme-tap/internal/process"
)

// DefaultCaptureFilter is the kernel-side BPF filter: only management frames
// (beacons, probes, action, NAN) reach userspace. Everything else is the
// biggest single performance cost tshark could otherwise incur.
const DefaultCaptureFilter = "type mgt"

// Stats is a point-in-time snapshot of the helper's line-reading activity.
type Stats struct {
	LinesRead    int64
	StartTime    time.Time
	LastLineTime time.Time
	Restarts     int
}

// Capture supervises one tshark subprocess in monitor mode on a single
// interface. It does not retune the interface itself — that is
// internal/hopper and internal/netlink's job — it only captures whatever
// channel the interface currently sits on.
type Capture struct {
	mu sync.RWMutex

	iface      string
	tsharkPath string
	onLine     func(line string)

	proc  *process.Process
	stats Stats
}

// New constructs a Capture bound to iface. onLine is invoked for every
// NDJSON line tshark emits on stdout; it must not block, since it runs on
// the stdout-draining goroutine.
func New(iface, tsharkPath string, onLine func(line string)) *Capture {
	if tsharkPath == "" {
		tsharkPath = "/usr/bin/tshark"
	}
	return &Capture{
		iface:      iface,
		tsharkPath: tsharkPath,
		onLine:     onLine,
	}
}

func (c *Capture) buildArgs() []string {
	return []string{
		"-i", c.iface,
		"-T", "ek",
		"-n",
		"-l",
		"-f", DefaultCaptureFilter,
	}
}

// Start spawns tshark. Safe to call again after Stop for a restart; the
// restart counter in Stats is incremented each time.
func (c *Capture) Start() error {
	c.mu.Lock()
	if c.proc == nil {
		c.proc = process.New("tshark")
	}
	proc := c.proc
	c.stats.StartTime = time.Now()
	c.stats.Restarts++
	c.mu.Unlock()

	proc.SetStdoutCallback(func(line string) {
		if line == "" {
			return
		}
		c.mu.Lock()
		c.stats.LinesRead++
		c.stats.LastLineTime = time.Now()
		cb := c.onLine
		c.mu.Unlock()
		if cb != nil {
			cb(line)
		}
	})
	proc.SetStderrCallback(func(line string) {
		switch {
		case strings.Contains(line, "Capturing on"),
			strings.Contains(line, "packets captured"),
			strings.Contains(line, "packets received"):
			logger.Info("tshark: %s", line)
		default:
			logger.Debug("tshark stderr: %s", line)
		}
	})

	args := c.buildArgs()
	if err := proc.Start(c.tsharkPath, args...); err != nil {
		return fmt.Errorf("start tshark: %w", err)
	}
	return nil
}

// Stop sends SIGINT (tshark's graceful-flush signal, not SIGTERM), waits 5s,
// kills on timeout, then waits up to 2s more for the kill to land.
func (c *Capture) Stop() error {
	c.mu.RLock()
	proc := c.proc
	c.mu.RUnlock()
	if proc == nil {
		return nil
	}
	return proc.StopWithSignal(syscall.SIGINT, 5*time.Second, 2*time.Second)
}

// IsRunning reports whether the helper process is currently alive.
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	proc := c.proc
	c.mu.RUnlock()
	if proc == nil {
		return false
	}
	return proc.State() == process.StateRunning
}

// SecondsSinceLastLine is the watchdog's frame-starvation signal. Before any
// line has ever arrived it measures from start time instead, so a helper
// that never produces output still ages out.
func (c *Capture) SecondsSinceLastLine() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stats.LastLineTime.IsZero() {
		if c.stats.StartTime.IsZero() {
			return 0
		}
		return time.Since(c.stats.StartTime).Seconds()
	}
	return time.Since(c.stats.LastLineTime).Seconds()
}

// Stats returns a copy of the current counters.
func (c *Capture) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LinesRead is the watchdog's pipeline-stall input: the helper's
// cumulative stdout line count.
func (c *Capture) LinesRead() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.LinesRead
}
