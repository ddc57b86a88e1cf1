package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubscriptionEvent is the append-only audit log: one row per webhook
// event that mutated a user. Rows are never updated or deleted; they are
// the record of "what did we know, when" for support investigations.
type SubscriptionEvent struct {
	ID        string         `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID    string         `json:"userId" gorm:"type:uuid;not null;index"`
	EventType string         `json:"eventType" gorm:"not null"`
	EventID   string         `json:"eventId"`
	Payload   datatypes.JSON `json:"payload"`
	EventAt   time.Time      `json:"eventAt"`
	CreatedAt time.Time      `json:"createdAt"`
}
