package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxUtterance bounds a text utterance in bytes.
const DefaultMaxUtterance = 4096

var (
	ErrUtteranceTooLarge = errors.New("utterance exceeds maximum allowed size")
	ErrInvalidUTF8       = errors.New("utterance contains invalid UTF-8 sequences")
)

// SanitizeUtterance enforces the size limit, validates UTF-8 and strips
// control characters other than newline, tab and carriage return.
// Oversized input is rejected rather than truncated.
func SanitizeUtterance(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxUtterance
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrUtteranceTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
