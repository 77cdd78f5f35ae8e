// Package normalizer converts site-specific raw date text into calendar dates.
package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"kornews/internal/models"
)

// Variant names one raw date encoding used by a site.
type Variant string

// Supported variants.
const (
	// VariantBreak is "MM.DD<br>YYYY".
	VariantBreak Variant = "mm.dd_br_yyyy"
	// VariantNewline is "MM.DD\nYYYY".
	VariantNewline Variant = "mm.dd_nl_yyyy"
	// VariantTimestamp is "YYYY.MM.DD HH:MM:SS".
	VariantTimestamp Variant = "yyyy.mm.dd_hh:mm:ss"
)

// ErrUnknownVariant is returned for an unsupported variant name.
var ErrUnknownVariant = errors.New("unknown date variant")

// BreakToken is how a line-break element appears in raw date text.
const BreakToken = "<br>"

var breakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)

// ParseVariant validates a configured variant name.
func ParseVariant(name string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(name))); v {
	case VariantBreak, VariantNewline, VariantTimestamp:
		return v, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// Normalize converts raw date text to a calendar date.
// It reports false for malformed, partial or impossible input.
func Normalize(raw string, variant Variant) (models.Date, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Date{}, false
	}

	switch variant {
	case VariantBreak:
		return parseMonthDayYear(breakPattern.Split(raw, -1))
	case VariantNewline:
		return parseMonthDayYear(strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n"))
	case VariantTimestamp:
		return parseTimestamp(raw)
	}

	return models.Date{}, false
}

// parseMonthDayYear expects exactly ["MM.DD", "YYYY"].
func parseMonthDayYear(parts []string) (models.Date, bool) {
	if len(parts) != 2 {
		return models.Date{}, false
	}

	monthDay := strings.Split(strings.TrimSpace(parts[0]), ".")
	if len(monthDay) != 2 {
		return models.Date{}, false
	}

	return assemble(strings.TrimSpace(parts[1]), monthDay[0], monthDay[1])
}

// parseTimestamp expects "YYYY.MM.DD HH:MM:SS" and drops the time of day.
func parseTimestamp(raw string) (models.Date, bool) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return models.Date{}, false
	}

	ymd := strings.Split(parts[0], ".")
	if len(ymd) != 3 {
		return models.Date{}, false
	}

	if _, err := time.Parse(time.TimeOnly, parts[1]); err != nil {
		return models.Date{}, false
	}

	return assemble(ymd[0], ymd[1], ymd[2])
}

func assemble(year, month, day string) (models.Date, bool) {
	if !isDigits(year, 4, 4) || !isDigits(month, 1, 2) || !isDigits(day, 1, 2) {
		return models.Date{}, false
	}

	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)

	t, err := time.Parse(time.DateOnly, fmt.Sprintf("%s-%02d-%02d", year, m, d))
	if err != nil {
		return models.Date{}, false
	}

	return models.DateOf(t), true
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
