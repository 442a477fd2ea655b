package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	nameMinLength  = 2
	nameMaxLength  = 80
	emailMaxLength = 254
)

var (
	// nameRE accepts letters (with combining marks), spaces, hyphens, and
	// apostrophes, starting with a letter.
	nameRE = regexp.MustCompile(`^[\p{L}][\p{L}\p{M}'’ -]*$`)

	// emailRE is the permissive shape check used at the boundary; deliverability
	// is not our concern here.
	emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	spaceRunRE = regexp.MustCompile(`\s+`)
)

// stripControl removes ASCII control characters (including DEL).
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// SanitizeName strips control characters and collapses whitespace runs.
func SanitizeName(input string) string {
	return strings.TrimSpace(spaceRunRE.ReplaceAllString(stripControl(input), " "))
}

// Name validates a display name: 2–80 runes, letters/spaces/hyphens/apostrophes.
func Name(field, input string) (string, error) {
	normalized := SanitizeName(input)
	if normalized == "" {
		return "", FieldError{Field: field, Message: "Name is required."}
	}
	if n := utf8.RuneCountInString(normalized); n < nameMinLength || n > nameMaxLength {
		return "", FieldError{Field: field, Message: "Name must be between 2 and 80 characters."}
	}
	if !nameRE.MatchString(normalized) {
		return "", FieldError{
			Field:   field,
			Message: "Name may only contain letters, spaces, hyphens, and apostrophes.",
		}
	}
	return normalized, nil
}

// SanitizeEmail strips control characters, collapses whitespace, and lowercases.
func SanitizeEmail(input string) string {
	return strings.ToLower(SanitizeName(input))
}

// Email validates an email address shape and length.
func Email(field, input string) (string, error) {
	normalized := SanitizeEmail(input)
	if normalized == "" {
		return "", FieldError{Field: field, Message: "Email is required."}
	}
	if len(normalized) > emailMaxLength {
		return "", FieldError{Field: field, Message: "Email must be 254 characters or fewer."}
	}
	if !emailRE.MatchString(normalized) {
		return "", FieldError{Field: field, Message: "Email must be valid."}
	}
	return normalized, nil
}
