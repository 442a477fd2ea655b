// Package domain defines the persistence models for the vanish-chat backend:
// OTP challenges, rate-limit windows, contact requests, contacts, ephemeral
// messages, and audit events. These types are mapped with GORM and form the
// core data layer of the application.
package domain

import "time"

// Contact request lifecycle states. A request starts as pending and moves
// exactly once to accepted or rejected; both are terminal.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Participant is the denormalized identity snapshot carried on contact
// requests and contacts. It is embedded (not a foreign key) so that resolved
// requests and contacts remain readable even if the user record changes.
type Participant struct {
	ID    string `json:"id"    gorm:"type:varchar(64);not null"`
	Name  string `json:"name"  gorm:"type:varchar(80);not null"`
	Phone string `json:"phone,omitempty" gorm:"type:varchar(20)"`
	Email string `json:"email,omitempty" gorm:"type:varchar(254)"`
}

// RateLimitWindow is the throttling state for one admission key. The record
// holds a sliding window counter plus the instant of the last attempt (used
// for cooldown spacing). RequestCount only grows within a window and resets
// to 1 when a new window opens.
type RateLimitWindow struct {
	Key             string    `json:"key"               gorm:"type:varchar(200);primaryKey"`
	WindowStartedAt time.Time `json:"window_started_at" gorm:"not null"`
	RequestCount    int       `json:"request_count"     gorm:"not null;default:1"`
	LastRequestedAt time.Time `json:"last_requested_at" gorm:"not null"`
}

// TableName returns the database table name for RateLimitWindow.
func (RateLimitWindow) TableName() string { return "rate_limit_windows" }

// OtpChallenge is one verification cycle for a phone number. The phone is the
// primary key, so there is at most one live challenge per phone. The record
// embeds the same window/cooldown fields as RateLimitWindow because OTP
// issuance throttling is stored on the challenge itself rather than in a
// separate window row.
//
// The plaintext code is never stored; CodeHash is an HMAC-SHA256 over
// "phone:code" keyed with the application secret.
type OtpChallenge struct {
	Phone           string    `json:"phone"             gorm:"type:varchar(20);primaryKey"`
	CodeHash        string    `json:"-"                 gorm:"type:char(64);not null"`
	CreatedAt       time.Time `json:"created_at"        gorm:"not null"`
	ExpiresAt       time.Time `json:"expires_at"        gorm:"not null;index"`
	Attempts        int       `json:"attempts"          gorm:"not null;default:0"`
	LastRequestedAt time.Time `json:"last_requested_at" gorm:"not null"`
	RequestCount    int       `json:"request_count"     gorm:"not null;default:1"`
	WindowStartedAt time.Time `json:"window_started_at" gorm:"not null"`
}

// TableName returns the database table name for OtpChallenge.
func (OtpChallenge) TableName() string { return "otp_challenges" }

// ContactRequest is a directed request from requester to receiver. At most one
// pending request may exist per (requester, receiver) pair; this is enforced
// by a partial unique index created in repo.AutoMigrate (GORM tags cannot
// express partial indexes).
type ContactRequest struct {
	ID        string      `json:"id"         gorm:"type:char(36);primaryKey"`
	Requester Participant `json:"requester"  gorm:"embedded;embeddedPrefix:requester_"`
	Receiver  Participant `json:"receiver"   gorm:"embedded;embeddedPrefix:receiver_"`
	Status    string      `json:"status"     gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','accepted','rejected')"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName returns the database table name for ContactRequest.
func (ContactRequest) TableName() string { return "contact_requests" }

// Contact is the symmetric, accepted relationship between two users. PairKey
// is the canonical unordered pair identity (participant ids sorted and
// joined), unique per pair, which makes contact creation idempotent: a
// duplicate insert collides on PairKey and is treated as success.
type Contact struct {
	ID           string      `json:"id"            gorm:"type:char(36);primaryKey"`
	PairKey      string      `json:"-"             gorm:"type:varchar(130);not null;uniqueIndex:ux_contact_pair"`
	ParticipantA Participant `json:"participant_a" gorm:"embedded;embeddedPrefix:a_"`
	ParticipantB Participant `json:"participant_b" gorm:"embedded;embeddedPrefix:b_"`
	CreatedAt    time.Time   `json:"created_at"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// ParticipantIDs returns the sorted id pair backing PairKey.
func (c *Contact) ParticipantIDs() [2]string {
	if c.ParticipantA.ID <= c.ParticipantB.ID {
		return [2]string{c.ParticipantA.ID, c.ParticipantB.ID}
	}
	return [2]string{c.ParticipantB.ID, c.ParticipantA.ID}
}

// Message is a unit of chat content with a read-triggered visibility window.
// DeletionAt is unset until the message is read (or explicitly deleted); once
// stamped it is never moved. A message is visible only while DeletionAt is
// unset or in the future; physical removal is storage hygiene, not a
// correctness concern.
type Message struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string     `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_sender_created,priority:1"`
	ReceiverID string     `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_receiver_created,priority:1"`
	Body       string     `json:"body"        gorm:"type:text;not null"`
	CreatedAt  time.Time  `json:"created_at"  gorm:"index:idx_sender_created,priority:2;index:idx_receiver_created,priority:2"`
	ReadAt     *time.Time `json:"read_at"`
	DeletionAt *time.Time `json:"deletion_at" gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Visible reports whether the message may still be shown at the given instant.
func (m *Message) Visible(now time.Time) bool {
	return m.DeletionAt == nil || m.DeletionAt.After(now)
}

// AuditLog is an append-only record of security-relevant actions (contact
// request rejections, message deletions). Metadata is a JSON document.
type AuditLog struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Action    string    `json:"action"     gorm:"type:varchar(64);not null;index:idx_action_created,priority:1"`
	ActorID   string    `json:"actor_id"   gorm:"type:varchar(64);index"`
	TargetID  string    `json:"target_id"  gorm:"type:varchar(64)"`
	Metadata  string    `json:"metadata"   gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_action_created,priority:2"`
}

// TableName returns the database table name for AuditLog.
func (AuditLog) TableName() string { return "audit_logs" }
