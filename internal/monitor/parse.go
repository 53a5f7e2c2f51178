package monitor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// ParsePrice extracts the first numeric run from a human-formatted
// price such as "¥199.50 起". Missing or unparsable input yields 0.
func ParsePrice(s string) float64 {
	match := numberPattern.FindString(s)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseCount parses an engagement count such as "15", "1.2k" or
// "1.2万". The thousands suffixes multiply the numeric prefix by 1000.
// Unparsable input yields 0.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	factor := 1.0
	switch {
	case strings.HasSuffix(s, "万"):
		s = strings.TrimSuffix(s, "万")
		factor = 1000
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		s = s[:len(s)-1]
		factor = 1000
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(math.Round(v * factor))
}
