// Package channel defines the WiFi channel/frequency data model shared by
// the classifier, the config loader, the channel hopper, and cmd/tap's
// radio tuner.
package channel

import "fmt"

// Band tags a channel number with the spectrum it belongs to.
type Band string

const (
	Band24GHz Band = "24ghz"
	Band5GHz  Band = "5ghz"
	Band6GHz  Band = "6ghz"
)

// NANDiscoveryChannel is the mandatory WiFi NAN RemoteID discovery channel
// (ASTM F3411). It earns an extended dwell in the band-priority hopper.
const NANDiscoveryChannel = 6

// Channel pairs a channel number with its band and derived center frequency.
type Channel struct {
	Number  int
	Band    Band
	FreqMHz int
}

func (c Channel) String() string {
	return fmt.Sprintf("ch%d/%dMHz(%s)", c.Number, c.FreqMHz, c.Band)
}

// freqToChannel and channelToFreq are built once at package init from the
// band tables below.
var (
	freq24 = map[int]int{}
	freq5  = map[int]int{}
	freq6  = map[int]int{}

	freqToChannelAll = map[int]int{}
	channelToFreq24  = map[int]int{}
	channelToFreq5   = map[int]int{}
	channelToFreq6   = map[int]int{}
)

func init() {
	// 2.4 GHz: channels 1-13 on the regular 5MHz ladder, channel 14 special-cased.
	for ch := 1; ch < 14; ch++ {
		freq24[2412+5*(ch-1)] = ch
	}
	freq24[2484] = 14

	// 5 GHz: enumerated channel list, freq = 5000 + 5*ch.
	for _, ch := range []int{
		36, 40, 44, 48, 52, 56, 60, 64,
		100, 104, 108, 112, 116, 120, 124, 128,
		132, 136, 140, 144, 149, 153, 157, 161, 165, 169, 173, 177,
	} {
		freq5[5000+5*ch] = ch
	}

	// 6 GHz: channels 1-233, freq = 5950 + 5*ch.
	for ch := 1; ch <= 233; ch++ {
		freq6[5950+5*ch] = ch
	}

	for f, ch := range freq24 {
		freqToChannelAll[f] = ch
		channelToFreq24[ch] = f
	}
	for f, ch := range freq5 {
		freqToChannelAll[f] = ch
		channelToFreq5[ch] = f
	}
	for f, ch := range freq6 {
		freqToChannelAll[f] = ch
		channelToFreq6[ch] = f
	}
}

// FreqToChannel converts a radiotap center frequency (MHz) to a WiFi channel
// number. Returns (0, false) if the frequency doesn't map to a known channel.
func FreqToChannel(freqMHz int) (int, bool) {
	ch, ok := freqToChannelAll[freqMHz]
	return ch, ok
}

// ChannelToFreq converts a channel number to its center frequency in MHz.
// Lookup order is 2.4GHz, then 5GHz, then 6GHz, so a channel number that
// appears in more than one band's own numbering space resolves to 2.4GHz.
func ChannelToFreq(ch int) (int, bool) {
	if f, ok := channelToFreq24[ch]; ok {
		return f, true
	}
	if f, ok := channelToFreq5[ch]; ok {
		return f, true
	}
	if f, ok := channelToFreq6[ch]; ok {
		return f, true
	}
	return 0, false
}

// BandOf classifies a channel number by which band table it was resolved
// from, using the same 24->5->6 priority as ChannelToFreq.
func BandOf(ch int) (Band, bool) {
	if _, ok := channelToFreq24[ch]; ok {
		return Band24GHz, true
	}
	if _, ok := channelToFreq5[ch]; ok {
		return Band5GHz, true
	}
	if _, ok := channelToFreq6[ch]; ok {
		return Band6GHz, true
	}
	return "", false
}

// Resolve builds a Channel from a bare channel number, looking up its band
// and frequency. Returns (Channel{}, false) for an unrecognized number.
func Resolve(number int) (Channel, bool) {
	freq, ok := ChannelToFreq(number)
	if !ok {
		return Channel{}, false
	}
	band, _ := BandOf(number)
	return Channel{Number: number, Band: band, FreqMHz: freq}, true
}
