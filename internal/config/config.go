// Package config loads, validates, and persists the sensor's configuration,
// including the atomically-persisted sensor identity (UUID).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"nozyme-tap/internal/channel"
)

type Config struct {
	TapUUID string `yaml:"tap_uuid" json:"tap_uuid"`
	TapName string `yaml:"tap_name" json:"tap_name"`

	NodeHost string `yaml:"node_host" json:"node_host"`
	NodePort int    `yaml:"node_port" json:"node_port"`

	Interface    string `yaml:"interface" json:"interface"`
	AutoMonitor  bool   `yaml:"auto_monitor" json:"auto_monitor"`
	TsharkPath   string `yaml:"tshark_path" json:"tshark_path"`

	Channels24GHz []int `yaml:"channels_24ghz" json:"channels_24ghz"`
	Channels5GHz  []int `yaml:"channels_5ghz" json:"channels_5ghz"`
	Channels6GHz  []int `yaml:"channels_6ghz" json:"channels_6ghz"`
	// ChannelsLegacy is a flat, band-agnostic channel list honored only when
	// no band-specific key above was explicitly present in the loaded file.
	ChannelsLegacy []int `yaml:"channels,omitempty" json:"-"`

	ChannelDwellMS        int     `yaml:"channel_dwell_ms" json:"channel_dwell_ms"`
	ActiveDwellMultiplier float64 `yaml:"active_dwell_multiplier" json:"active_dwell_multiplier"`
	ActivityTimeoutS      float64 `yaml:"activity_timeout_s" json:"activity_timeout_s"`
	IdleScanIntervalS     float64 `yaml:"idle_scan_interval_s" json:"idle_scan_interval_s"`

	StarvationTimeoutS     float64 `yaml:"starvation_timeout_s" json:"starvation_timeout_s"`
	TsharkRestartDelayS    float64 `yaml:"tshark_restart_delay_s" json:"tshark_restart_delay_s"`
	WatchdogCheckIntervalS float64 `yaml:"watchdog_check_interval_s" json:"watchdog_check_interval_s"`
	BufferWarnThreshold    int     `yaml:"buffer_warn_threshold" json:"buffer_warn_threshold"`
	MemoryPercentThreshold float64 `yaml:"memory_percent_threshold" json:"memory_percent_threshold"`

	HeartbeatIntervalS float64 `yaml:"heartbeat_interval_s" json:"heartbeat_interval_s"`

	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`

	// PatternFilePath points at an external signature file (ssid_patterns,
	// oui_map, dji_ssid_models). Empty uses the built-in default set.
	PatternFilePath string `yaml:"pattern_file_path" json:"pattern_file_path"`

	LogLevel     string `yaml:"log_level" json:"log_level"`
	LogFilePath  string `yaml:"log_file_path" json:"log_file_path"`
	LogMaxSizeMB int    `yaml:"log_max_size_mb" json:"log_max_size_mb"`
	LogMaxBackups int   `yaml:"log_max_backups" json:"log_max_backups"`

	SinkBufferSize int `yaml:"sink_buffer_size" json:"sink_buffer_size"`
	SinkHWM        int `yaml:"sink_hwm" json:"sink_hwm"`

	// loadedKeys tracks which top-level keys were present in the file as
	// loaded, before defaults were merged in. Used for legacy-channel
	// migration; never persisted.
	loadedKeys map[string]bool `yaml:"-" json:"-"`
}

type Manager struct {
	mu       sync.RWMutex
	config   *Config
	filePath string
}

func NewManager(filePath string) *Manager {
	return &Manager{filePath: filePath}
}

func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := DefaultConfig()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.config = cfg
			cfg.EnsureTapUUID()
			return m.saveUnsafe()
		}
		return err
	}

	loaded := map[string]any{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	cfg.loadedKeys = make(map[string]bool, len(loaded))
	for k := range loaded {
		cfg.loadedKeys[k] = true
	}

	cfg.migrateLegacyChannels()
	cfg.validateChannels()
	cfg.EnsureTapUUID()

	m.config = cfg
	return m.validateUnsafe()
}

func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnsafe()
}

func (m *Manager) saveUnsafe() error {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0600)
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &cfg
	return m.saveUnsafe()
}

func (m *Manager) validateUnsafe() error {
	return m.config.Validate()
}

// migrateLegacyChannels folds a flat `channels:` key into channels_24ghz,
// but only when no band-specific key was explicitly present in the loaded
// file — an operator who set channels_5ghz explicitly is never silently
// overridden by a stale legacy key.
func (c *Config) migrateLegacyChannels() {
	if len(c.ChannelsLegacy) == 0 {
		return
	}
	if c.loadedKeys["channels_24ghz"] || c.loadedKeys["channels_5ghz"] || c.loadedKeys["channels_6ghz"] {
		return
	}
	c.Channels24GHz = c.ChannelsLegacy
}

// validateChannels drops channel numbers that don't belong to the band they
// were listed under, defaulting to [6] on 2.4GHz if nothing survives.
func (c *Config) validateChannels() {
	c.Channels24GHz = filterBand(c.Channels24GHz, channel.Band24GHz)
	c.Channels5GHz = filterBand(c.Channels5GHz, channel.Band5GHz)
	c.Channels6GHz = filterBand(c.Channels6GHz, channel.Band6GHz)

	if len(c.Channels24GHz) == 0 && len(c.Channels5GHz) == 0 && len(c.Channels6GHz) == 0 {
		c.Channels24GHz = []int{channel.NANDiscoveryChannel}
	}
}

func filterBand(channels []int, band channel.Band) []int {
	out := make([]int, 0, len(channels))
	for _, ch := range channels {
		b, ok := channel.BandOf(ch)
		if ok && b == band {
			out = append(out, ch)
		}
	}
	return out
}

// ChannelsByBand returns the configured channel lists keyed by band tag, the
// shape the hopper constructor expects.
func (c *Config) ChannelsByBand() map[channel.Band][]int {
	return map[channel.Band][]int{
		channel.Band24GHz: c.Channels24GHz,
		channel.Band5GHz:  c.Channels5GHz,
		channel.Band6GHz:  c.Channels6GHz,
	}
}

// Validate checks configuration invariants and returns all violations
// joined into one error.
func (c *Config) Validate() error {
	var errs []string

	if c.NodePort < 1 || c.NodePort > 65535 {
		errs = append(errs, fmt.Sprintf("node_port %d is invalid (must be 1-65535)", c.NodePort))
	}
	if c.Interface == "" {
		errs = append(errs, "interface must not be empty")
	}
	if c.ChannelDwellMS <= 0 {
		errs = append(errs, "channel_dwell_ms must be positive")
	}
	if c.ActivityTimeoutS <= 0 {
		errs = append(errs, "activity_timeout_s must be positive")
	}
	if c.StarvationTimeoutS <= 0 {
		errs = append(errs, "starvation_timeout_s must be positive")
	}
	if c.WatchdogCheckIntervalS <= 0 {
		errs = append(errs, "watchdog_check_interval_s must be positive")
	}
	if c.HeartbeatIntervalS <= 0 {
		errs = append(errs, "heartbeat_interval_s must be positive")
	}
	if c.MemoryPercentThreshold <= 0 || c.MemoryPercentThreshold > 100 {
		errs = append(errs, fmt.Sprintf("memory_percent_threshold %.1f is invalid (must be 0-100)", c.MemoryPercentThreshold))
	}
	if c.TsharkPath != "" {
		if _, err := os.Stat(c.TsharkPath); err != nil {
			// not a validation failure: cmd/tap's startup preflight
			// (system.CheckTshark) reports a missing binary
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		TapName:                "nozyme-tap",
		NodeHost:               "127.0.0.1",
		NodePort:               5590,
		Interface:              "wlan1",
		AutoMonitor:            true,
		TsharkPath:             "/usr/bin/tshark",
		Channels24GHz:          []int{1, 6, 11},
		Channels5GHz:           []int{},
		Channels6GHz:           []int{},
		ChannelDwellMS:         250,
		ActiveDwellMultiplier:  3.0,
		ActivityTimeoutS:       30.0,
		IdleScanIntervalS:      5.0,
		StarvationTimeoutS:     30.0,
		PatternFilePath:        "",
		TsharkRestartDelayS:    1.0,
		WatchdogCheckIntervalS: 2.0,
		BufferWarnThreshold:    500,
		MemoryPercentThreshold: 90.0,
		HeartbeatIntervalS:     10.0,
		LogLevel:               "info",
		LogMaxSizeMB:           10,
		LogMaxBackups:          5,
		SinkBufferSize:         1000,
		SinkHWM:                1000,
	}
}

// uuidFallbackPaths lists the identity-file locations in priority order;
// the first one that is readable, or writable on first boot, wins.
func uuidFallbackPaths() []string {
	home, _ := os.UserHomeDir()
	paths := []string{
		"/home/tap/.tap_uuid",
		"/var/lib/nozyme/tap_uuid",
	}
	if home != "" {
		paths = append(paths, filepath.Join(home, ".nozyme_tap_uuid"))
	}
	return paths
}

// EnsureTapUUID populates TapUUID from the first readable persisted path,
// or generates and persists a new one if none exist.
func (c *Config) EnsureTapUUID() {
	if c.TapUUID != "" {
		return
	}
	for _, p := range uuidFallbackPaths() {
		data, err := os.ReadFile(p)
		if err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				c.TapUUID = id
				return
			}
		}
	}
	c.TapUUID = uuid.NewString()
	_ = persistTapUUID(c.TapUUID)
}

func persistTapUUID(id string) error {
	var lastErr error
	for _, p := range uuidFallbackPaths() {
		if err := atomicWrite(p, []byte(id)); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// atomicWrite writes content to a temp file in path's directory, fsyncs it,
// then renames over path — so a crash mid-write can never leave a
// truncated file at path.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp_*.nozyme")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
