package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnsureTapUUID()
	assert.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.TapUUID)
}

func TestMigrateLegacyChannelsOnlyWhenBandKeysAbsent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChannelsLegacy = []int{1, 6, 11}
	cfg.Channels24GHz = nil
	cfg.loadedKeys = map[string]bool{"channels": true}
	cfg.migrateLegacyChannels()
	assert.Equal(t, []int{1, 6, 11}, cfg.Channels24GHz)

	cfg2 := DefaultConfig()
	cfg2.ChannelsLegacy = []int{1, 6, 11}
	cfg2.Channels24GHz = []int{44}
	cfg2.loadedKeys = map[string]bool{"channels": true, "channels_24ghz": true}
	cfg2.migrateLegacyChannels()
	assert.Equal(t, []int{44}, cfg2.Channels24GHz, "explicit band key must not be overridden by legacy key")
}

func TestValidateChannelsDropsWrongBandAndDefaultsToChannelSix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels24GHz = []int{149} // a 5GHz channel number, wrongly placed
	cfg.Channels5GHz = nil
	cfg.Channels6GHz = nil
	cfg.validateChannels()
	assert.Equal(t, []int{6}, cfg.Channels24GHz)
}

func TestAtomicWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tap_uuid")

	require.NoError(t, atomicWrite(path, []byte("first-value")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first-value", string(data))

	require.NoError(t, atomicWrite(path, []byte("second-value")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second-value", string(data))
}

// Property: after atomicWrite(path, U) returns, no intermediate temp file is
// left behind and a read of path returns exactly U — never a truncated or
// mixed value, even under repeated writes.
func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tap_uuid")

	rapid.Check(t, func(rt *rapid.T) {
		value := rapid.StringN(1, 40, -1).Draw(rt, "value")
		require.NoError(rt, atomicWrite(path, []byte(value)))

		data, err := os.ReadFile(path)
		require.NoError(rt, err)
		assert.Equal(rt, value, string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(rt, err)
		assert.Len(rt, entries, 1, "no leftover temp files")
	})
}
