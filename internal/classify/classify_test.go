package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	ps, err := LoadPatternSet("")
	require.NoError(t, err)
	return New(ps, nil)
}

func TestPureNoiseBeaconRejected(t *testing.T) {
	c := testClassifier(t)
	line := `{"layers":{"wlan":{"wlan_wlan_sa":["aa:bb:cc:dd:ee:ff"]},"wlan_mgt":{"wlan_mgt_wlan_mgt_ssid":["Starbucks-WiFi"]}}}`
	_, ok := c.Classify(line)
	assert.False(t, ok, "Starbucks-WiFi beacon must not trigger the pre-filter")
}

func TestIndexLineRejectedBeforeParse(t *testing.T) {
	c := testClassifier(t)
	_, ok := c.Classify(`{"index":{"_index":"packets"}}`)
	assert.False(t, ok)
}

func TestDJIVendorIEBeacon(t *testing.T) {
	c := testClassifier(t)
	line := `{"layers":{"wlan":{"wlan_wlan_sa":["34:d2:62:11:22:33"]},"radiotap":{"radiotap_radiotap_channel_freq":["5745"]},"dji_drone_id":{}}}`
	env, ok := c.Classify(line)
	require.True(t, ok)
	assert.Equal(t, KindDJIDroneID, env.Kind)
	require.NotNil(t, env.Channel)
	assert.Equal(t, 149, *env.Channel)
}

func TestParrotSSIDFingerprint(t *testing.T) {
	c := testClassifier(t)
	line := `{"layers":{"wlan":{"wlan_wlan_sa":["90:3a:e6:01:02:03"]},"wlan_mgt":{"wlan_mgt_wlan_mgt_ssid":["ANAFI-ABCDEF"]}}}`
	env, ok := c.Classify(line)
	require.True(t, ok)
	assert.Equal(t, KindWiFiFingerprint, env.Kind)
}

func TestDroneOUIGenericSSID(t *testing.T) {
	c := testClassifier(t)
	line := `{"layers":{"wlan":{"wlan_wlan_sa":["60:60:1f:01:02:03"]},"wlan_mgt":{"wlan_mgt_wlan_mgt_ssid":["MySSID"]}}}`
	env, ok := c.Classify(line)
	require.True(t, ok)
	assert.Equal(t, KindWiFiFingerprint, env.Kind)
}

func TestActionFrameRemoteIDTakesPriorityOverFingerprint(t *testing.T) {
	c := testClassifier(t)
	line := `{"layers":{"wlan":{"wlan_wlan_sa":["34:d2:62:11:22:33"],"wlan_wlan_fc_type_subtype":["13"]},"remoteid":{},"wlan_mgt":{"wlan_mgt_wlan_mgt_ssid":["DJI-MINI4PRO-726"]}}}`
	env, ok := c.Classify(line)
	require.True(t, ok)
	assert.Equal(t, KindRemoteIDAction, env.Kind)
}

func TestDJIModelExtractionFallsBackToShorterPrefix(t *testing.T) {
	c := testClassifier(t)
	model, ok := c.ExtractDJIModel("DJI-MINI4PROXX-AB12")
	require.True(t, ok)
	assert.Equal(t, "Mini 4 Pro", model)
}

func TestNegativeCacheOnlyPopulatedWithMACAndSSID(t *testing.T) {
	c := testClassifier(t)
	// "RemoteID" appears as a substring of a plain office SSID — enough to
	// pass the pre-filter, but the frame carries no RemoteID/DJI/fingerprint
	// layer or OUI, so it's a confirmed non-drone MAC, not a pre-filter skip.
	line := `{"layers":{"wlan":{"wlan_wlan_sa":["aa:bb:cc:dd:ee:01"]},"wlan_mgt":{"wlan_mgt_wlan_mgt_ssid":["Office-RemoteID-Test"]}}}`
	_, ok := c.Classify(line)
	assert.False(t, ok)
	assert.True(t, c.cache.Negative("AA:BB:CC:DD:EE:01"))
}
