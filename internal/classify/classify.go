// Package classify implements the two-stage hot-path classifier: a
// substring pre-filter that rejects ~99% of lines without JSON parsing,
// followed by structured decode and five ordered classification checks.
package classify

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"nozyme-tap/internal/channel"
)

// djiSSIDRe extracts the model code segment from a DJI SSID, e.g.
// "DJI-MINI4PRO-726" -> "MINI4PRO".
var djiSSIDRe = regexp.MustCompile(`(?i)^DJI[-_ ]([A-Z0-9]+?)(?:[-_ ]\w+)?$`)

// FrameKind identifies which classification predicate matched.
type FrameKind string

const (
	KindRemoteIDNAN     FrameKind = "remoteid_nan"
	KindRemoteIDAction  FrameKind = "remoteid_action"
	KindDJIDroneID      FrameKind = "dji_droneid"
	KindWiFiFingerprint FrameKind = "wifi_fingerprint"
)

// actionRemoteIDSubtype is the 802.11 frame-control subtype (0x000d,
// action frame) RemoteID rides on when not broadcast via NAN.
const actionRemoteIDSubtype = 0x000d

// Envelope is the classifier's output: the minimal per-frame record
// forwarded to the sink. RSSIdBm and Channel are pointers because tshark
// does not always decode them (e.g. radiotap absent on some capture
// setups).
type Envelope struct {
	SourceMAC string
	RSSIdBm   *float64
	Channel   *int
	Kind      FrameKind
	Raw       map[string]any
}

// Classifier holds the immutable pattern set and the optional match cache.
// The pattern set is frozen at construction, so Classify never takes a
// lock to read it — only the cache is mutable. Per-channel activity is not
// the classifier's own state: it is reported to the single shared map the
// hopper owns, via the ReportActivity callback passed to New.
type Classifier struct {
	patterns *PatternSet
	cache    *MatchCache

	reportActivity func(ch int)
}

// New builds a Classifier from a loaded pattern set. reportActivity is
// called with a channel number whenever a matched frame carries one — wire
// it to the running *hopper.Hopper's ReportActivity so there is exactly one
// activity map, written here and read by the hopper's hop loop. May be nil
// (e.g. in tests) to skip activity reporting entirely.
func New(patterns *PatternSet, reportActivity func(ch int)) *Classifier {
	return &Classifier{
		patterns:       patterns,
		cache:          NewMatchCache(),
		reportActivity: reportActivity,
	}
}

// Classify runs the full hot path on one NDJSON line from tshark's -T ek
// output. Returns (envelope, true) on a match, (zero, false) to drop.
// Never panics on malformed input; any decode failure is treated as a drop.
func (c *Classifier) Classify(line string) (Envelope, bool) {
	if !looksLikeRecord(line) {
		return Envelope{}, false
	}
	if !c.patterns.TriggerPattern.MatchString(line) {
		return Envelope{}, false
	}

	var doc ekDocument
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		return Envelope{}, false
	}
	if len(doc.Layers) == 0 {
		return Envelope{}, false
	}

	wlan, _ := doc.Layers["wlan"].(map[string]any)
	mac := ekString(wlan, "wlan_wlan_sa", "wlan_sa", "wlan.sa", "wlan_wlan_ta", "wlan_ta", "wlan.ta")
	if mac == "" {
		return Envelope{}, false
	}
	macUpper := strings.ToUpper(strings.ReplaceAll(mac, "-", ":"))

	radiotap, _ := doc.Layers["radiotap"].(map[string]any)
	rssi := ekFloat(radiotap, "radiotap_radiotap_dbm_antsignal", "radiotap_dbm_antsignal", "radiotap.dbm_antsignal")
	freq := ekFloat(radiotap, "radiotap_radiotap_channel_freq", "radiotap_channel_freq", "radiotap.channel.freq")

	var ch *int
	if freq != nil {
		if n, ok := channel.FreqToChannel(int(*freq)); ok {
			ch = &n
		}
	}

	// A cached positive verdict supplies only the kind; RSSI, channel and the
	// raw record always come from the current line.
	var kind FrameKind
	if cached, ok := c.cache.Positive(macUpper); ok {
		kind = cached.Kind
	} else {
		var ssidSeen bool
		kind, ssidSeen = c.matchKind(doc.Layers, wlan, macUpper)
		if kind == "" {
			if ssidSeen && macUpper != "" {
				c.cache.CacheNegative(macUpper)
			}
			return Envelope{}, false
		}
	}

	env := Envelope{
		SourceMAC: macUpper,
		RSSIdBm:   rssi,
		Channel:   ch,
		Kind:      kind,
		Raw:       doc.Layers,
	}
	c.cache.CachePositive(macUpper, env)
	c.reportActivityFromEnvelope(env)
	return env, true
}

// matchKind runs the five ordered predicates, first match wins. ssidSeen
// tells the caller whether an SSID was available, which gates negative
// caching in Classify.
func (c *Classifier) matchKind(layers map[string]any, wlan map[string]any, macUpper string) (FrameKind, bool) {
	if hasAnyLayer(layers, "opendroneid", "open_drone_id", "droneid", "remoteid") {
		return KindRemoteIDNAN, false
	}

	if subtype, ok := frameSubtype(wlan); ok && subtype == actionRemoteIDSubtype {
		if hasAnyLayer(layers, "opendroneid", "open_drone_id", "droneid", "remoteid") {
			return KindRemoteIDAction, false
		}
	}

	if _, ok := layers["dji_drone_id"]; ok {
		return KindDJIDroneID, false
	}

	mgmt, _ := layers["wlan_wlan_mgt"].(map[string]any)
	if mgmt == nil {
		mgmt, _ = layers["wlan_mgt"].(map[string]any)
	}
	ssid := ekString(mgmt, "wlan_wlan_ssid", "wlan_mgt_wlan_mgt_ssid", "wlan_mgt_ssid", "wlan.mgt.ssid")
	if ssid == "" {
		ssid = ekString(wlan, "wlan_wlan_ssid", "wlan_ssid", "wlan.ssid")
	}
	ssidSeen := ssid != ""
	if ssidSeen {
		ssid = decodeSSID(ssid)
		for _, p := range c.patterns.SSIDPatterns {
			if p.Pattern.MatchString(ssid) {
				return KindWiFiFingerprint, ssidSeen
			}
		}
	}

	if macUpper != "" && len(macUpper) >= 8 {
		oui := macUpper[:8]
		if _, ok := c.patterns.DroneOUIs[oui]; ok {
			return KindWiFiFingerprint, ssidSeen
		}
	}

	return "", ssidSeen
}

// ExtractDJIModel resolves a DJI SSID's model code, trying progressively
// shorter prefixes (down to length 3) before giving up. Exported so
// internal/heartbeat or future enrichment code can reuse it without
// re-running the full classifier.
func (c *Classifier) ExtractDJIModel(ssid string) (string, bool) {
	m := djiSSIDRe.FindStringSubmatch(ssid)
	if m == nil {
		return "", false
	}
	code := strings.ToUpper(m[1])
	if model, ok := c.patterns.DJISSIDModels[code]; ok {
		return model, true
	}
	for length := len(code) - 1; length > 2; length-- {
		if model, ok := c.patterns.DJISSIDModels[code[:length]]; ok {
			return model, true
		}
	}
	return "", false
}

func (c *Classifier) reportActivityFromEnvelope(env Envelope) {
	if env.Channel != nil && c.reportActivity != nil {
		c.reportActivity(*env.Channel)
	}
}

// CacheStats exposes cache occupancy for the heartbeat payload.
func (c *Classifier) CacheStats() (positive, negative int) {
	return c.cache.Len()
}

type ekDocument struct {
	Layers map[string]any `json:"layers"`
}

// looksLikeRecord rejects tshark's EK index lines ({"index":...}) and
// anything that isn't even JSON-shaped, before the pre-filter regex runs.
func looksLikeRecord(line string) bool {
	if len(line) < 3 || line[0] != '{' {
		return false
	}
	if line[1] == '"' && line[2] == 'i' {
		return false
	}
	return true
}

// ekString pulls the first present key's scalar value out of tshark EK
// JSON, where values are wrapped in single-element arrays.
func ekString(obj map[string]any, keys ...string) string {
	v := ekVal(obj, keys...)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(toString(v))
}

func ekFloat(obj map[string]any, keys ...string) *float64 {
	v := ekVal(obj, keys...)
	if v == nil {
		return nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func ekVal(obj map[string]any, keys ...string) any {
	if obj == nil {
		return nil
	}
	for _, key := range keys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		if arr, ok := v.([]any); ok {
			if len(arr) == 0 {
				continue
			}
			return arr[0]
		}
		return v
	}
	return nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func frameSubtype(wlan map[string]any) (int, bool) {
	v := ekVal(wlan, "wlan_wlan_fc_type_subtype", "wlan_fc_type_subtype", "wlan.fc.type_subtype")
	if v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimPrefix(t, "0x"), 16, 64)
		if err != nil {
			n, err = strconv.ParseInt(t, 0, 64)
			if err != nil {
				return 0, false
			}
		}
		return int(n), true
	}
	return 0, false
}

func hasAnyLayer(layers map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := layers[k]; ok {
			return true
		}
	}
	return false
}

// decodeSSID undoes tshark's hex-colon SSID encoding ("48:69:6c:74:6f:6e"),
// falling back to the raw value when it isn't hex-colon shaped.
func decodeSSID(raw string) string {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return raw
	}
	buf := make([]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) != 2 {
			return raw
		}
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return raw
		}
		buf = append(buf, byte(n))
	}
	return string(buf)
}
