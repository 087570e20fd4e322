package coerce

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Locale controls numeric parsing. A zero separator means auto-detect per value.
type Locale struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// naTokens are raw cell spellings read as missing, matching common spreadsheet exports.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
	"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
	"n/a": {}, "nan": {}, "null": {},
}

// IsNA reports whether a raw cell denotes a missing value.
func IsNA(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// ParseNumber parses s as a float. Percent signs and non-breaking spaces are dropped;
// decimal and thousands separators follow loc, auto-detecting when unset.
func ParseNumber(s string, loc Locale) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	dec := loc.DecimalSeparator
	thou := loc.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && isThousandsGrouped(raw, ','):
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	// ParseFloat accepts "NaN" and "Inf"; those are not usable measurements.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isThousandsGrouped reports "1,000" / "12,345,678" shapes: every group after the
// first separator has exactly three digits.
func isThousandsGrouped(s string, sep rune) bool {
	parts := strings.Split(strings.TrimLeft(s, "+-"), string(sep))
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 || parts[0] == "0" {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006-01-02T15:04:05", "02-Jan-2006", "Jan 2, 2006", "2 Jan 2006",
}

// ParseTime tries a fixed list of layouts and returns the first that parses.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
