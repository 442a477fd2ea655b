// Package services – Prometheus counters for domain events. HTTP-level
// metrics live in the middleware package; these track state transitions that
// matter regardless of transport.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// otpIssued counts issued (or reissued) OTP challenges.
	otpIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otp_challenges_issued_total",
		Help: "Total number of OTP challenges issued.",
	})

	// otpVerified counts successfully consumed challenges.
	otpVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otp_challenges_verified_total",
		Help: "Total number of OTP challenges verified and consumed.",
	})

	// contactsCreated counts contact records created by accepted requests
	// (idempotent duplicates excluded).
	contactsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "contacts_created_total",
		Help: "Total number of contact relationships created.",
	})

	// messagesDeleted counts requester-initiated early deletions.
	messagesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_deleted_total",
		Help: "Total number of messages deleted before their visibility window closed.",
	})
)

func init() {
	prometheus.MustRegister(otpIssued, otpVerified, contactsCreated, messagesDeleted)
}
