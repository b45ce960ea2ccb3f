package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameRateZeroBelowTwoSamples(t *testing.T) {
	var r frameRate
	assert.Equal(t, 0.0, r.framesPerSecond())
	r.record(time.Now())
	assert.Equal(t, 0.0, r.framesPerSecond())
}

func TestFrameRateComputesFromSpread(t *testing.T) {
	var r frameRate
	base := time.Unix(1000, 0)
	for i := 0; i < 11; i++ {
		r.record(base.Add(time.Duration(i) * time.Second))
	}
	// 11 samples spanning 10s -> 10 intervals / 10s = 1.0 fps
	assert.InDelta(t, 1.0, r.framesPerSecond(), 0.001)
}

func TestFrameRateZeroOnBackwardClockJump(t *testing.T) {
	var r frameRate
	base := time.Unix(2000, 0)
	r.record(base)
	r.record(base.Add(-5 * time.Second))
	assert.Equal(t, 0.0, r.framesPerSecond())
}

func TestFrameRateWrapsAroundRing(t *testing.T) {
	var r frameRate
	base := time.Unix(5000, 0)
	for i := 0; i < frameRateSamples+5; i++ {
		r.record(base.Add(time.Duration(i) * time.Second))
	}
	// only the most recent frameRateSamples entries remain live.
	rate := r.framesPerSecond()
	assert.InDelta(t, 1.0, rate, 0.001)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 3.1, round1(3.14))
}
