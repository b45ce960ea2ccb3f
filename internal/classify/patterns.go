package classify

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SSIDPattern is one signature-file entry: a compiled SSID regex plus the
// manufacturer/model/controller-flag it resolves to on match.
type SSIDPattern struct {
	Pattern      *regexp.Regexp
	Manufacturer string
	Model        string
	IsController bool
}

// PatternSet is the classifier's read-only, post-init state: SSID regexes,
// the drone OUI set, and the DJI model lookup table, plus the single
// trigger regex the pre-filter runs against every line.
type PatternSet struct {
	SSIDPatterns   []SSIDPattern
	DroneOUIs      map[string]string // "XX:XX:XX" -> manufacturer description
	DJISSIDModels  map[string]string // upper-cased code -> human model name
	TriggerPattern *regexp.Regexp
}

// signatureFile is the external signature file's shape: ssid_patterns /
// oui_map / dji_ssid_models, loaded once at startup.
type signatureFile struct {
	SSIDPatterns []struct {
		Pattern      string `yaml:"pattern"`
		Manufacturer string `yaml:"manufacturer"`
		Model        string `yaml:"model"`
		IsController bool   `yaml:"is_controller"`
	} `yaml:"ssid_patterns"`
	OUIMap        map[string]string `yaml:"oui_map"`
	DJISSIDModels map[string]string `yaml:"dji_ssid_models"`
}

// protocolTriggers are the layer-key substrings checks 1-3 key off of —
// present verbatim in the tshark EK JSON when RemoteID/DJI DroneID layers
// are decoded.
var protocolTriggers = []string{
	"opendroneid", "open_drone_id", "dji_drone_id", "remoteid", "droneid",
}

// LoadPatternSet builds a PatternSet either from an external signature file
// (path non-empty) or from the built-in default set. Either way it compiles
// every SSID regex and builds the single-pass trigger alternation up front,
// so the classifier hot path never compiles a pattern.
func LoadPatternSet(path string) (*PatternSet, error) {
	var sf signatureFile
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read signature file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return nil, fmt.Errorf("parse signature file: %w", err)
		}
	} else {
		sf = defaultSignatureFile()
	}

	ps := &PatternSet{
		DroneOUIs:     make(map[string]string),
		DJISSIDModels: make(map[string]string),
	}

	for _, entry := range sf.SSIDPatterns {
		if entry.Pattern == "" {
			continue
		}
		compiled, err := regexp.Compile("(?i)" + entry.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid SSID pattern %q: %w", entry.Pattern, err)
		}
		model := entry.Model
		if model == "" {
			model = "Unknown"
		}
		manufacturer := entry.Manufacturer
		if manufacturer == "" {
			manufacturer = "Unknown"
		}
		ps.SSIDPatterns = append(ps.SSIDPatterns, SSIDPattern{
			Pattern:      compiled,
			Manufacturer: manufacturer,
			Model:        model,
			IsController: entry.IsController,
		})
	}

	for oui, desc := range sf.OUIMap {
		upper := strings.ToUpper(oui)
		if strings.Contains(strings.ToLower(desc), "(drone)") {
			ps.DroneOUIs[upper] = desc
		}
	}

	for code, model := range sf.DJISSIDModels {
		ps.DJISSIDModels[strings.ToUpper(code)] = model
	}

	trigger, err := buildTriggerRegex(ps, sf)
	if err != nil {
		return nil, err
	}
	ps.TriggerPattern = trigger

	return ps, nil
}

// buildTriggerRegex assembles the single alternation the pre-filter runs:
// protocol keywords, every drone OUI (lowercased, colon-joined), and every
// literal SSID fragment extracted from the compiled patterns' source. Pack
// by length, longest first, so a longer fragment is preferred when two
// alternatives both match at the same position.
func buildTriggerRegex(ps *PatternSet, sf signatureFile) (*regexp.Regexp, error) {
	seen := make(map[string]bool)
	var triggers []string
	add := func(s string) {
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if seen[key] {
			return
		}
		seen[key] = true
		triggers = append(triggers, s)
	}

	for _, t := range protocolTriggers {
		add(t)
	}
	for oui := range ps.DroneOUIs {
		add(strings.ToLower(oui))
	}
	for _, entry := range sf.SSIDPatterns {
		add(literalFragment(entry.Pattern))
	}

	sort.Slice(triggers, func(i, j int) bool { return len(triggers[i]) > len(triggers[j]) })

	escaped := make([]string, len(triggers))
	for i, t := range triggers {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.Compile("(?i)" + strings.Join(escaped, "|"))
}

// literalFragment strips common regex metacharacters from a signature
// pattern to recover the literal substring a real SSID must contain. The
// signature file's patterns are themselves mostly literal manufacturer
// names with light anchoring (e.g. "^DJI[-_ ]"), so trimming anchors and
// character classes back to the leading literal run is enough for the
// pre-filter, which only needs a necessary (not sufficient) condition.
func literalFragment(pattern string) string {
	trimmed := strings.TrimLeft(pattern, "^")
	trimmed = strings.TrimRight(trimmed, "$")
	cut := strings.IndexAny(trimmed, "[(.*+?\\|")
	if cut > 0 && (trimmed[cut] == '?' || trimmed[cut] == '*') {
		// The quantifier makes the preceding character optional.
		cut--
	}
	if cut >= 0 {
		trimmed = trimmed[:cut]
	}
	return trimmed
}
