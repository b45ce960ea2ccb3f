// Package hopper implements the adaptive channel-hopping strategies that
// keep a single monitor-mode radio cycling across the configured channel
// set, biasing dwell time toward channels with recent drone activity.
package hopper

import (
	"context"
	"sync"
	"time"

	"nozyme-tap/internal/channel"
	"nozyme-tap/internal/logger"
)

// Tuner is the minimal retune contract the hopper needs; cmd/tap's
// radioTuner, which wraps internal/netlink's Driver plus its subprocess
// fallback, satisfies it.
type Tuner interface {
	SetChannel(ch int) error
}

const (
	// fastRoundRobinMax is the channel-count ceiling for the simple
	// round-robin strategy; above it the hopper switches to band-priority
	// scanning.
	fastRoundRobinMax = 3
	// bandPriorityHeavyMax triggers slower secondary-band scanning once
	// the configured channel set grows past it (9+ channels).
	bandPriorityHeavyMax = 8

	scanFreq5GHz = 3  // scan 5GHz every Nth cycle in band-priority mode
	scanFreq6GHz = 10 // scan 6GHz every Nth cycle in band-priority mode

	nanDwellMultiplier = 2.0 // extra dwell on the NAN discovery channel
)

// Mode reports whether the hopper is scanning (no recent activity) or
// tracking (dwelling on channels with recent drone activity).
type Mode string

const (
	ModeScanning Mode = "scanning"
	ModeTracking Mode = "tracking"
)

// Stats is a snapshot of the hopper's lifetime counters.
type Stats struct {
	Hops         int64
	Errors       int64
	ActiveDwells int64
}

// Hopper cycles a single interface across a configured channel set,
// dwelling longer on channels the classifier has recently reported activity
// on. Activity is reported by the classifier via ReportActivity and
// consumed by the hop loop; both sides serialize through activityMu.
type Hopper struct {
	tuner Tuner

	channelsByBand map[channel.Band][]int
	allChannels    []int
	channelBand    map[int]channel.Band

	dwell                 time.Duration
	activeDwellMultiplier float64
	activityTimeout       time.Duration
	idleScanInterval      time.Duration

	mu             sync.Mutex
	currentChannel int
	mode           Mode
	stats          Stats

	activityMu sync.Mutex
	activity   map[int]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Config bundles the hopper's tunable timing parameters, all sourced from
// internal/config.Config.
type Config struct {
	DwellMS               int
	ActiveDwellMultiplier float64
	ActivityTimeoutS      float64
	IdleScanIntervalS     float64
}

// New builds a Hopper over channelsByBand. Bands with an empty channel list
// are dropped.
func New(tuner Tuner, channelsByBand map[channel.Band][]int, cfg Config) *Hopper {
	h := &Hopper{
		tuner:                 tuner,
		channelsByBand:        make(map[channel.Band][]int),
		channelBand:           make(map[int]channel.Band),
		dwell:                 time.Duration(cfg.DwellMS) * time.Millisecond,
		activeDwellMultiplier: cfg.ActiveDwellMultiplier,
		activityTimeout:       time.Duration(cfg.ActivityTimeoutS * float64(time.Second)),
		idleScanInterval:      time.Duration(cfg.IdleScanIntervalS * float64(time.Second)),
		mode:                  ModeScanning,
		activity:              make(map[int]time.Time),
	}

	for _, band := range []channel.Band{channel.Band24GHz, channel.Band5GHz, channel.Band6GHz} {
		chs := channelsByBand[band]
		if len(chs) == 0 {
			continue
		}
		cp := append([]int(nil), chs...)
		h.channelsByBand[band] = cp
		for _, ch := range cp {
			h.allChannels = append(h.allChannels, ch)
			h.channelBand[ch] = band
		}
	}

	return h
}

// ReportActivity records that a classified drone frame was seen on ch just
// now. Safe to call concurrently with the running hop loop.
func (h *Hopper) ReportActivity(ch int) {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()
	h.activity[ch] = time.Now()
}

func (h *Hopper) activeChannels() []int {
	cutoff := time.Now().Add(-h.activityTimeout)
	h.activityMu.Lock()
	defer h.activityMu.Unlock()
	var active []int
	for ch, t := range h.activity {
		if t.After(cutoff) {
			active = append(active, ch)
		}
	}
	return active
}

// setChannel retunes the interface and only writes currentChannel after a
// successful retune — never speculatively beforehand, on any path.
func (h *Hopper) setChannel(ch int) bool {
	err := h.tuner.SetChannel(ch)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.stats.Errors++
		logger.Warn("channel hopper: set channel %d failed: %v", ch, err)
		return false
	}
	h.currentChannel = ch
	h.stats.Hops++
	return true
}

// Start begins hopping. A single channel is pinned with no background
// loop; 2-3 channels use fast round-robin; more use band-priority scanning.
func (h *Hopper) Start(ctx context.Context) {
	if len(h.allChannels) <= 1 {
		if len(h.allChannels) == 1 {
			h.setChannel(h.allChannels[0])
		}
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	strategy := h.hopLoopBandPriority
	strategyName := "band_priority"
	if len(h.allChannels) <= fastRoundRobinMax {
		strategy = h.hopLoopFastRR
		strategyName = "fast_rr"
	}

	logger.Info("channel hopper started: %d channels (dwell=%s, active_mult=%.1fx, strategy=%s)",
		len(h.allChannels), h.dwell, h.activeDwellMultiplier, strategyName)

	go func() {
		defer close(h.done)
		strategy(ctx)
	}()
}

// Stop cancels the hop loop and waits (up to 3s) for it to exit.
func (h *Hopper) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(3 * time.Second):
	}
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

// hopLoopFastRR is the simple round-robin strategy for 2-3 channels.
func (h *Hopper) hopLoopFastRR(ctx context.Context) {
	lastIdleScan := time.Now()

	for ctx.Err() == nil {
		if !h.fastRRIteration(ctx, &lastIdleScan) {
			return
		}
	}
}

// fastRRIteration runs one pass of the fast round-robin strategy. A panic
// raised anywhere inside (e.g. a misbehaving Tuner) is recovered, logged,
// and treated as a 1s cooldown before the next iteration, so the loop
// itself never dies on an unexpected error.
func (h *Hopper) fastRRIteration(ctx context.Context, lastIdleScan *time.Time) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("channel hopper: recovered panic in fast_rr loop: %v", r)
			cont = sleepCtx(ctx, time.Second)
		}
	}()

	active := h.activeChannels()

	if len(active) == 0 {
		h.setMode(ModeScanning)
		for _, ch := range h.allChannels {
			h.setChannel(ch)
			if !sleepCtx(ctx, h.dwell) {
				return false
			}
		}
		return true
	}

	h.setMode(ModeTracking)
	for _, ch := range active {
		h.setChannel(ch)
		h.mu.Lock()
		h.stats.ActiveDwells++
		h.mu.Unlock()
		if !sleepCtx(ctx, time.Duration(float64(h.dwell)*h.activeDwellMultiplier)) {
			return false
		}
	}

	if time.Since(*lastIdleScan) >= h.idleScanInterval {
		activeSet := toSet(active)
		for _, ch := range h.allChannels {
			if activeSet[ch] {
				continue
			}
			h.setChannel(ch)
			if !sleepCtx(ctx, h.dwell) {
				return false
			}
		}
		*lastIdleScan = time.Now()
	}
	return true
}

// hopLoopBandPriority is the band-aware strategy for 4+ channels.
func (h *Hopper) hopLoopBandPriority(ctx context.Context) {
	cycleCount := 0
	lastIdleScan := time.Now()

	heavy := len(h.allChannels) > bandPriorityHeavyMax
	freq5 := scanFreq5GHz
	freq6 := scanFreq6GHz
	if heavy {
		freq5 *= 2
		freq6 *= 2
	}

	for ctx.Err() == nil {
		if !h.bandPriorityIteration(ctx, &cycleCount, &lastIdleScan, freq5, freq6) {
			return
		}
	}
}

// bandPriorityIteration runs one pass of the band-priority strategy. A panic
// raised anywhere inside is recovered, logged, and treated as a 1s cooldown
// before the next iteration, so the loop itself never dies on an unexpected
// error.
func (h *Hopper) bandPriorityIteration(ctx context.Context, cycleCount *int, lastIdleScan *time.Time, freq5, freq6 int) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("channel hopper: recovered panic in band_priority loop: %v", r)
			cont = sleepCtx(ctx, time.Second)
		}
	}()

	active := h.activeChannels()

	if len(active) == 0 {
		h.setMode(ModeScanning)

		for _, ch := range h.channelsByBand[channel.Band24GHz] {
			h.setChannel(ch)
			dwell := h.dwell
			if ch == channel.NANDiscoveryChannel {
				dwell = time.Duration(float64(h.dwell) * nanDwellMultiplier)
			}
			if !sleepCtx(ctx, dwell) {
				return false
			}
		}

		if *cycleCount%freq5 == 0 {
			for _, ch := range h.channelsByBand[channel.Band5GHz] {
				h.setChannel(ch)
				if !sleepCtx(ctx, h.dwell) {
					return false
				}
			}
		}

		if *cycleCount%freq6 == 0 {
			for _, ch := range h.channelsByBand[channel.Band6GHz] {
				h.setChannel(ch)
				if !sleepCtx(ctx, h.dwell) {
					return false
				}
			}
		}

		*cycleCount++
		return true
	}

	h.setMode(ModeTracking)

	for _, ch := range active {
		h.setChannel(ch)
		h.mu.Lock()
		h.stats.ActiveDwells++
		h.mu.Unlock()
		if !sleepCtx(ctx, time.Duration(float64(h.dwell)*h.activeDwellMultiplier)) {
			return false
		}
	}

	activeSet := toSet(active)
	activeBands := map[channel.Band]bool{}
	for _, ch := range active {
		if b, ok := h.channelBand[ch]; ok {
			activeBands[b] = true
		}
	}
	for band := range activeBands {
		for _, ch := range h.channelsByBand[band] {
			if activeSet[ch] {
				continue
			}
			h.setChannel(ch)
			if !sleepCtx(ctx, h.dwell) {
				return false
			}
		}
	}

	if time.Since(*lastIdleScan) >= h.idleScanInterval {
		for _, ch := range h.allChannels {
			if activeSet[ch] || activeBands[h.channelBand[ch]] {
				continue
			}
			h.setChannel(ch)
			if !sleepCtx(ctx, h.dwell) {
				return false
			}
		}
		*lastIdleScan = time.Now()
	}
	return true
}

func (h *Hopper) setMode(m Mode) {
	h.mu.Lock()
	h.mode = m
	h.mu.Unlock()
}

// CurrentChannel returns the channel the radio was last successfully tuned
// to.
func (h *Hopper) CurrentChannel() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentChannel
}

// ModeNow returns the hopper's current scanning/tracking mode.
func (h *Hopper) ModeNow() Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

// StatsNow returns a copy of the hopper's lifetime counters.
func (h *Hopper) StatsNow() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func toSet(chs []int) map[int]bool {
	s := make(map[int]bool, len(chs))
	for _, ch := range chs {
		s[ch] = true
	}
	return s
}
