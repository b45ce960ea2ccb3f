package main

import (
	"context"
	"fmt"
	"sync"

	"nozyme-tap/internal/capture"
	"nozyme-tap/internal/channel"
	"nozyme-tap/internal/netlink"
)

// radioTuner adapts internal/netlink's ifindex+frequency driver to the
// bare channel-number contracts internal/hopper.Tuner and
// internal/watchdog.InterfaceResetter expect. It resolves the interface's
// ifindex once (cached by the driver) and falls back to the `iw` subprocess
// whenever the raw netlink path errors, matching EnsureMonitorMode's own
// tiered-fallback philosophy.
type radioTuner struct {
	iface  string
	driver *netlink.Driver

	mu           sync.Mutex
	recoveryChan int
}

func newRadioTuner(iface string, driver *netlink.Driver, recoveryChan int) *radioTuner {
	return &radioTuner{iface: iface, driver: driver, recoveryChan: recoveryChan}
}

// SetChannel satisfies internal/hopper.Tuner.
func (t *radioTuner) SetChannel(ch int) error {
	freq, ok := channel.ChannelToFreq(ch)
	if !ok {
		return fmt.Errorf("tuner: channel %d has no known frequency", ch)
	}

	t.mu.Lock()
	iface := t.iface
	t.mu.Unlock()

	if t.driver != nil {
		ifindex, err := t.driver.Ifindex(iface, capture.Ifindex)
		if err == nil {
			if err := t.driver.SetChannel(ifindex, freq); err == nil {
				return nil
			}
		}
	}

	return netlink.SubprocessFallback(context.Background(), iface, ch)
}

// ResetInterface satisfies internal/watchdog.InterfaceResetter: it
// re-establishes monitor mode, then retunes back to the pinned recovery
// channel.
func (t *radioTuner) ResetInterface(ctx context.Context) error {
	monIface, err := capture.EnsureMonitorMode(t.iface)
	if err != nil {
		return fmt.Errorf("tuner: reset interface: %w", err)
	}
	t.mu.Lock()
	t.iface = monIface
	recovery := t.recoveryChan
	t.mu.Unlock()

	return t.SetChannel(recovery)
}
