// Package validate provides input normalization and validation for the
// free-text fields accepted at the API boundary: phone numbers, display
// names, emails, and contact-request participants. All checks run before any
// mutation; a failed check is reported as a FieldError that handlers can
// render with enough detail to correct the input.
package validate

import "strings"

const (
	phoneMinDigits = 10
	phoneMaxDigits = 15
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// NormalizePhone strips everything but digits and returns the canonical
// "+<digits>" form. It returns "" when the input is empty or the digit count
// is outside the accepted 10–15 range (country code required).
func NormalizePhone(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < phoneMinDigits || len(digits) > phoneMaxDigits {
		return ""
	}
	return "+" + digits
}

// Phone validates and normalizes a phone number. On success it returns the
// canonical form; on failure it returns a FieldError for the given field name.
func Phone(field, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", FieldError{Field: field, Message: "Phone number is required."}
	}
	normalized := NormalizePhone(input)
	if normalized == "" {
		return "", FieldError{
			Field:   field,
			Message: "Phone number must include 10 to 15 digits (country code required).",
		}
	}
	return normalized, nil
}
