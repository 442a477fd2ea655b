package domain

import "time"

// Idempotency represents a recorded result of a previously processed message
// send, keyed by (sender_id, receiver_id, key). It enables safe retries for
// POST /messages by returning the originally created message without creating
// a second one.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	SenderID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_sender_receiver_key,priority:1"`
	ReceiverID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_sender_receiver_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_sender_receiver_key,priority:3"`
	MessageID  string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
