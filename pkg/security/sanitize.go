package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans user input. Text strips all markup and returns plain
// text; renderers escape it again on output.
type Sanitizer struct {
	strict    *bluemonday.Policy
	rich      *bluemonday.Policy
	maxLength int
}

// SanitizerOption configures a Sanitizer.
type SanitizerOption func(*Sanitizer)

// WithMaxLength truncates sanitized text to n runes. Zero means no limit.
func WithMaxLength(n int) SanitizerOption {
	return func(s *Sanitizer) {
		s.maxLength = n
	}
}

// NewSanitizer creates a sanitizer.
func NewSanitizer(opts ...SanitizerOption) *Sanitizer {
	s := &Sanitizer{
		strict:    bluemonday.StrictPolicy(),
		rich:      bluemonday.UGCPolicy(),
		maxLength: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text removes every tag from input and trims surrounding whitespace.
func (s *Sanitizer) Text(input string) string {
	if !strings.ContainsAny(input, "<>&") {
		return s.truncate(strings.TrimSpace(input))
	}
	clean := html.UnescapeString(s.strict.Sanitize(input))
	return s.truncate(strings.TrimSpace(clean))
}

// HTML keeps safe formatting markup such as links and emphasis; scripts,
// handlers and styles are dropped.
func (s *Sanitizer) HTML(input string) string {
	return s.rich.Sanitize(input)
}

func (s *Sanitizer) truncate(v string) string {
	if s.maxLength <= 0 || utf8.RuneCountInString(v) <= s.maxLength {
		return v
	}
	r := []rune(v)
	return string(r[:s.maxLength])
}
