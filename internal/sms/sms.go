// Package sms implements the outbound SMS transport used for OTP delivery.
// Delivery is best effort: a failed or skipped send never rolls back the OTP
// record, since the operator can always trigger a fresh issue.
package sms

import "context"

// Delivery status values reported by a Transport.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Result describes the outcome of one send attempt.
type Result struct {
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Transport sends a text message to a phone number. Implementations must not
// return an error for provider-side delivery failures; those are reported in
// the Result so the caller can log without failing the request.
type Transport interface {
	Send(ctx context.Context, to, body string) Result
}

// Noop is a Transport that drops every message, reporting skipped. Used in
// tests and when no provider is configured.
type Noop struct{}

// Send implements Transport.
func (Noop) Send(context.Context, string, string) Result {
	return Result{Provider: "noop", Status: StatusSkipped, Err: "SMS provider not configured"}
}
