package utils

import "strings"

// StringHelper provides string utility functions.
type StringHelper struct{}

// NewStringHelper creates a new string helper.
func NewStringHelper() *StringHelper {
	return &StringHelper{}
}

// NormalizeWhitespace replaces runs of whitespace with a single space and trims the ends.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// OptionalString returns nil for blank input and a pointer to the normalized text otherwise.
func (s *StringHelper) OptionalString(str string) *string {
	str = s.NormalizeWhitespace(str)
	if str == "" {
		return nil
	}

	return &str
}
