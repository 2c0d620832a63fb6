package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/mining-enricher/constants"
)

var (
	reCurrency = regexp.MustCompile(`^(?:us\$|usd|us|c\$|cad|a\$|aud|\$|€|£)\s*`)
	reAmount   = regexp.MustCompile(`^(\d[\d,]*(?:\.\d+)?|\.\d+)\s*(.*)$`)
	reUnitWord = regexp.MustCompile(`^[a-z]+`)
	reListSep  = regexp.MustCompile(`\s*(?:,|;|/|&|\band\b)\s*`)

	// monetary fields reported in USD millions
	millionFields = map[string]bool{"npv": true, "capex": true}
	numberFields  = []string{"npv", "irr", "capex", "opex", "mine_life"}
	stringFields  = []string{"location", "stage", "resource", "reserve", "description"}

	placeholderValues = map[string]bool{
		"null": true, "none": true, "n/a": true, "na": true, "unknown": true,
		"not found": true, "not available": true, "not stated": true, "-": true,
	}
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (commodity -> commodities, mineLife -> mine_life)
// - Drops null/empty/placeholder values
// - Coerces numeric strings ("$1.2 billion", "15.5%") to numbers
// - Splits and canonicalizes commodity labels
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to the schema
	renamed("commodity", "commodities")
	renamed("resources", "resource")
	renamed("reserves", "reserve")
	renamed("mineLife", "mine_life")
	renamed("mine_life_years", "mine_life")
	renamed("initial_capex", "capex")
	renamed("project_stage", "stage")

	// 2) numbers: keep JSON numbers, parse strings, drop the rest
	for _, k := range numberFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
		case string:
			if n, ok := ParseAmount(t, millionFields[k]); ok {
				m[k] = n
			} else {
				delete(m, k)
				dropped = append(dropped, k+"(unparsable)")
			}
		case nil:
			delete(m, k)
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	// 3) strings: trim, drop placeholders
	for _, k := range stringFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			delete(m, k)
			if v != nil {
				dropped = append(dropped, k+"(type)")
			}
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || placeholderValues[strings.ToLower(s)] {
			delete(m, k)
			dropped = append(dropped, k+"(empty)")
			continue
		}
		if k == "stage" {
			s, _ = constants.CanonicalStage(s)
		}
		m[k] = s
	}

	// 4) commodities: accept a string or a list, canonicalize each label
	if v, ok := m["commodities"]; ok {
		list := canonicalCommodities(v)
		if len(list) == 0 {
			delete(m, "commodities")
			if v != nil {
				dropped = append(dropped, "commodities(empty)")
			}
		} else {
			m["commodities"] = list
		}
	}

	// 5) remove unknown keys
	allowed := make(map[string]struct{}, len(FieldNames))
	for _, k := range FieldNames {
		allowed[k] = struct{}{}
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// ParseAmount reads a human-written number such as "$1.2 billion",
// "US$450M", "15.5%" or "1,234.5". With toMillions set, billion and
// thousand suffixes are scaled to millions.
func ParseAmount(s string, toMillions bool) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	neg := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "-"), "−"))
	}
	s = reCurrency.ReplaceAllString(s, "")
	if !neg && strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	}
	mm := reAmount.FindStringSubmatch(s)
	if mm == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(mm[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if toMillions {
		switch reUnitWord.FindString(strings.TrimSpace(mm[2])) {
		case "billion", "billions", "bn", "b", "bil":
			n *= 1000
		case "thousand", "thousands", "k":
			n /= 1000
		}
	}
	if neg {
		n = -n
	}
	return n, true
}

func canonicalCommodities(v any) []string {
	var labels []string
	switch t := v.(type) {
	case string:
		labels = reListSep.Split(t, -1)
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok {
				labels = append(labels, reListSep.Split(s, -1)...)
			}
		}
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || placeholderValues[strings.ToLower(l)] {
			continue
		}
		c, _ := constants.Canonicalize(l)
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
