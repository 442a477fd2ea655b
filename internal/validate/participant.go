package validate

import (
	"strings"

	"github.com/vanishchat/backend/internal/domain"
)

// ParticipantInput is the partially populated participant payload as received
// on the wire. Phone and email are optional.
type ParticipantInput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Participant checks that a participant payload carries the required identity
// fields. role ("requester" or "receiver") prefixes the reported field names.
func Participant(p ParticipantInput, role string) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, FieldError{
			Field:   role + ".id",
			Message: titleCase(role) + " id is required.",
		})
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, FieldError{
			Field:   role + ".name",
			Message: titleCase(role) + " name is required.",
		})
	}
	return errs
}

// NormalizeParticipant trims all participant fields into the stored shape.
func NormalizeParticipant(p ParticipantInput) domain.Participant {
	return domain.Participant{
		ID:    strings.TrimSpace(p.ID),
		Name:  strings.TrimSpace(p.Name),
		Phone: strings.TrimSpace(p.Phone),
		Email: strings.TrimSpace(p.Email),
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
