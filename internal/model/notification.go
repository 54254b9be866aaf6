package model

import "time"

// Notification is a message addressed to a single user. Notifications are
// created by the fan-out pipeline and the role authority, marked read by
// the recipient and deleted by the retention sweeper.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}

// AuditLogEntry is appended to the `logs` collection by every state
// changing operation. Entries are never read back by the platform.
type AuditLogEntry struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actorId"`
	Action    string         `json:"action"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
