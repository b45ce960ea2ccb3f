package hopper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nozyme-tap/internal/channel"
)

type fakeTuner struct {
	mu     sync.Mutex
	calls  []int
	failOn map[int]bool
}

func (f *fakeTuner) SetChannel(ch int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ch)
	if f.failOn[ch] {
		return errors.New("simulated tune failure")
	}
	return nil
}

func (f *fakeTuner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func defaultConfig() Config {
	return Config{
		DwellMS:               5,
		ActiveDwellMultiplier: 2,
		ActivityTimeoutS:      1,
		IdleScanIntervalS:     1,
	}
}

func TestNewDropsEmptyBands(t *testing.T) {
	tuner := &fakeTuner{}
	h := New(tuner, map[channel.Band][]int{
		channel.Band24GHz: {1, 6, 11},
		channel.Band5GHz:  nil,
	}, defaultConfig())

	assert.Len(t, h.allChannels, 3)
	_, has5 := h.channelsByBand[channel.Band5GHz]
	assert.False(t, has5)
}

func TestSingleChannelPinsWithoutBackgroundLoop(t *testing.T) {
	tuner := &fakeTuner{}
	h := New(tuner, map[channel.Band][]int{channel.Band24GHz: {6}}, defaultConfig())

	h.Start(context.Background())
	require.Equal(t, 6, h.CurrentChannel())
	assert.Nil(t, h.cancel, "single-channel case must not spin up a hop loop")
}

func TestCurrentChannelOnlyUpdatesOnSuccessfulRetune(t *testing.T) {
	tuner := &fakeTuner{failOn: map[int]bool{11: true}}
	h := New(tuner, map[channel.Band][]int{channel.Band24GHz: {1, 6, 11}}, defaultConfig())

	assert.True(t, h.setChannel(1))
	assert.Equal(t, 1, h.CurrentChannel())

	assert.False(t, h.setChannel(11))
	assert.Equal(t, 1, h.CurrentChannel(), "failed retune must not move currentChannel")
	assert.Equal(t, int64(1), h.StatsNow().Errors)
}

func TestFastRoundRobinStrategySelectedForThreeOrFewerChannels(t *testing.T) {
	tuner := &fakeTuner{}
	h := New(tuner, map[channel.Band][]int{channel.Band24GHz: {1, 6, 11}}, defaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	h.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	h.Stop()

	assert.GreaterOrEqual(t, tuner.callCount(), 3, "round robin should have visited all channels at least once")
}

func TestReportActivityMarksChannelActive(t *testing.T) {
	tuner := &fakeTuner{}
	h := New(tuner, map[channel.Band][]int{channel.Band24GHz: {1, 6, 11, 36}}, defaultConfig())

	h.ReportActivity(6)
	active := h.activeChannels()
	require.Len(t, active, 1)
	assert.Equal(t, 6, active[0])
}
