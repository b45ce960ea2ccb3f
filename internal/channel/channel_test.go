package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChannelToFreqKnownValues(t *testing.T) {
	freq, ok := ChannelToFreq(6)
	require.True(t, ok)
	assert.Equal(t, 2437, freq)

	freq, ok = ChannelToFreq(149)
	require.True(t, ok)
	assert.Equal(t, 5745, freq)

	_, ok = ChannelToFreq(9999)
	assert.False(t, ok)
}

func TestFreqToChannelKnownValues(t *testing.T) {
	ch, ok := FreqToChannel(2437)
	require.True(t, ok)
	assert.Equal(t, 6, ch)

	ch, ok = FreqToChannel(5745)
	require.True(t, ok)
	assert.Equal(t, 149, ch)
}

func Test24GHzWinsOverlappingChannelNumbers(t *testing.T) {
	// Channel "6" exists in both the 2.4GHz table (native) and 6GHz's own
	// channel-numbering space; priority ordering resolves it to 2.4GHz.
	band, ok := BandOf(6)
	require.True(t, ok)
	assert.Equal(t, Band24GHz, band)
}

// Bijection holds only *within* a single band's own frequency domain: 5GHz
// and 6GHz channel numbers overlap (both enumerate into the 30-230 range),
// so a bare channel number alone is ambiguous across bands and the combined
// ChannelToFreq resolves it with 2.4->5->6 priority.
func TestFreqChannelBijectionWithinBand(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		band := rapid.SampledFrom([]Band{Band24GHz, Band5GHz, Band6GHz}).Draw(rt, "band")
		table := bandFreqTable(band)
		freq := rapid.SampledFrom(freqsOf(table)).Draw(rt, "freq")
		ch := table[freq]
		roundTripFreq, ok := bandFreqOf(band, ch)
		require.True(rt, ok)
		assert.Equal(rt, freq, roundTripFreq)
	})
}

func bandFreqTable(b Band) map[int]int {
	switch b {
	case Band24GHz:
		return freq24
	case Band5GHz:
		return freq5
	default:
		return freq6
	}
}

// bandFreqOf looks up a channel number's frequency within one band's own
// table, bypassing the cross-band priority ChannelToFreq applies.
func bandFreqOf(b Band, ch int) (int, bool) {
	for f, c := range bandFreqTable(b) {
		if c == ch {
			return f, true
		}
	}
	return 0, false
}

func freqsOf(table map[int]int) []int {
	freqs := make([]int, 0, len(table))
	for f := range table {
		freqs = append(freqs, f)
	}
	return freqs
}
