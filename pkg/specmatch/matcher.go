// Package specmatch decides whether a measured value satisfies a test
// specification string. It is pure and side-effect free: the single source
// of pass/fail truth consumed by lot status recalculation.
package specmatch

import (
	"strconv"
	"strings"
)

// Values accepted for "Negative"-class specifications
var negativeValues = map[string]bool{
	"negative":     true,
	"nd":           true,
	"not detected": true,
	"bdl":          true,
}

// Values accepted for "Positive"-class specifications
var positiveValues = map[string]bool{
	"positive": true,
	"detected": true,
	"present":  true,
	"+":        true,
}

// Matches reports whether value satisfies spec. Rules, in priority order:
//
//  1. spec starts with "negative" (case-insensitive): value must be one of
//     negative/nd/not detected/bdl, or itself start with "<".
//  2. spec starts with "positive": value must be one of positive/detected/present/+.
//  3. spec starts with "<": numeric upper limit; a "<" value passes outright.
//  4. spec starts with ">": numeric lower limit; a ">" value passes outright.
//  5. spec contains an un-prefixed "-": inclusive numeric range "min-max".
//  6. otherwise: case-insensitive exact equality.
//
// Numeric parsing tolerates thousands separators and trailing unit text
// ("10,000 CFU/g"); unparsable numerics fail the match rather than erroring.
func Matches(spec, value string) bool {
	spec = strings.TrimSpace(spec)
	value = strings.TrimSpace(value)
	specLower := strings.ToLower(spec)
	valueLower := strings.ToLower(value)

	switch {
	case strings.HasPrefix(specLower, "negative"):
		return negativeValues[valueLower] || strings.HasPrefix(value, "<")

	case strings.HasPrefix(specLower, "positive"):
		return positiveValues[valueLower]

	case strings.HasPrefix(spec, "<"):
		limit, ok := parseNumeric(spec[1:])
		if !ok {
			return false
		}
		if strings.HasPrefix(value, "<") {
			return true
		}
		v, ok := parseNumeric(value)
		return ok && v < limit

	case strings.HasPrefix(spec, ">"):
		limit, ok := parseNumeric(spec[1:])
		if !ok {
			return false
		}
		if strings.HasPrefix(value, ">") {
			return true
		}
		v, ok := parseNumeric(value)
		return ok && v > limit
	}

	if min, max, ok := parseRange(spec); ok {
		v, vok := parseNumeric(value)
		return vok && v >= min && v <= max
	}

	return specLower == valueLower
}

// parseRange splits a "min-max" specification. The dash must separate two
// parseable numbers; anything else falls through to exact matching.
func parseRange(spec string) (min, max float64, ok bool) {
	idx := strings.Index(spec, "-")
	if idx <= 0 || idx >= len(spec)-1 {
		return 0, 0, false
	}
	min, okMin := parseNumeric(spec[:idx])
	max, okMax := parseNumeric(spec[idx+1:])
	if !okMin || !okMax {
		return 0, 0, false
	}
	return min, max, true
}

// parseNumeric extracts the leading number from s, stripping thousands
// separators and ignoring a trailing unit suffix ("10,000 CFU/g" -> 10000).
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}

	// Cut at the first character that cannot be part of a number
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
