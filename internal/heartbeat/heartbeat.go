// Package heartbeat assembles and periodically publishes the sensor's
// health payload: system metrics, frame rate, and every subsystem's own
// stats snapshot. Frame timestamps are kept in a fixed-size array ring
// with pos/full wraparound, rather than a growable slice.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"nozyme-tap/internal/capture"
	"nozyme-tap/internal/hopper"
	"nozyme-tap/internal/logger"
	"nozyme-tap/internal/sink"
	"nozyme-tap/internal/syshealth"
)

const frameRateSamples = 100

// frameRate is a fixed-size ring of recent frame timestamps, used to
// derive frames_per_second as (n-1)/(newest-oldest) over the retained window.
type frameRate struct {
	mu     sync.Mutex
	times  [frameRateSamples]time.Time
	pos    int
	filled int
}

func (r *frameRate) record(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times[r.pos] = t
	r.pos = (r.pos + 1) % frameRateSamples
	if r.filled < frameRateSamples {
		r.filled++
	}
}

// framesPerSecond guards against clock jumps: an NTP step backward or a
// stale first sample both produce a non-positive or implausibly large
// delta, and both are reported as 0 rather than trusted.
func (r *frameRate) framesPerSecond() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filled < 2 {
		return 0
	}
	newestIdx := (r.pos - 1 + frameRateSamples) % frameRateSamples
	oldestIdx := r.pos % frameRateSamples
	if r.filled < frameRateSamples {
		oldestIdx = 0
	}
	newest := r.times[newestIdx]
	oldest := r.times[oldestIdx]
	dt := newest.Sub(oldest).Seconds()
	if dt <= 0 || dt > 3600 {
		return 0
	}
	return float64(r.filled-1) / dt
}

// Heartbeat periodically assembles and publishes a health payload covering
// every subsystem it's given a reference to. Like internal/watchdog, it
// holds borrowed references only.
type Heartbeat struct {
	cap    *capture.Capture
	hop    *hopper.Hopper
	snk    sink.Sink
	rate   frameRate
	period time.Duration
}

// New builds a Heartbeat. hop may be nil if channel hopping is pinned to a
// single channel with no running hopper.
func New(cap *capture.Capture, hop *hopper.Hopper, snk sink.Sink, intervalS float64) *Heartbeat {
	period := time.Duration(intervalS * float64(time.Second))
	if period <= 0 {
		period = 10 * time.Second
	}
	return &Heartbeat{cap: cap, hop: hop, snk: snk, period: period}
}

// RecordFrame notes that a frame was classified just now, feeding the
// frames_per_second calculation. Called from the main read loop after
// every successful Classify.
func (h *Heartbeat) RecordFrame(t time.Time) {
	h.rate.record(t)
}

// SetCapture wires the capture supervisor once it exists. cmd/tap
// constructs the Heartbeat before the Capture (the capture callback needs
// a reference to the Heartbeat to record frames), so this is filled in
// after the fact rather than passed to New.
func (h *Heartbeat) SetCapture(cap *capture.Capture) {
	h.cap = cap
}

// Run publishes a heartbeat every period until ctx is canceled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	logger.Info("heartbeat started (interval=%s)", h.period)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.publish()
		}
	}
}

func (h *Heartbeat) publish() {
	if h.snk == nil {
		return
	}

	payload := map[string]any{
		"system":            systemPayload(),
		"frames_per_second": round1(h.rate.framesPerSecond()),
	}

	if h.cap != nil {
		cs := h.cap.Stats()
		payload["capture"] = map[string]any{
			"lines_read":     cs.LinesRead,
			"start_time":     cs.StartTime,
			"last_line_time": cs.LastLineTime,
			"restarts":       cs.Restarts,
		}
	}

	if h.hop != nil {
		hs := h.hop.StatsNow()
		payload["hopper"] = map[string]any{
			"hops":            hs.Hops,
			"errors":          hs.Errors,
			"active_dwells":   hs.ActiveDwells,
			"current_channel": h.hop.CurrentChannel(),
			"mode":            string(h.hop.ModeNow()),
		}
	}

	ss := h.snk.Stats()
	payload["transport"] = map[string]any{
		"buffered_count":   ss.BufferedCount,
		"buffered_bytes":   ss.BufferedBytes,
		"sent":             ss.Sent,
		"replayed":         ss.Replayed,
		"errors":           ss.Errors,
		"frames_processed": ss.FramesProcessed,
	}

	if err := h.snk.Publish("heartbeat", payload); err != nil {
		logger.Warn("heartbeat: publish failed: %v", err)
	}
}

func systemPayload() map[string]any {
	health := syshealth.Get()
	m := map[string]any{
		"cpu_load":       health.CPULoad,
		"cpu_percent":    health.CPUPercent,
		"memory_used":    health.MemoryUsed,
		"memory_total":   health.MemoryTotal,
		"memory_percent": health.MemoryPercent,
	}
	if health.TemperatureC != nil {
		m["temperature"] = *health.TemperatureC
	}
	if health.DiskFreeBytes != nil {
		m["disk_free"] = *health.DiskFreeBytes
	}
	if health.DiskWritesTotal != nil {
		m["disk_writes_total"] = *health.DiskWritesTotal
	}
	return m
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
