package models

import "time"

// ActionContinue tags every chunk of a multi-part reply except the last.
const ActionContinue = "CONTINUE"

// Memory is one record of the persisted message log.
type Memory struct {
	ID         string    `json:"id"` // ULID
	RoomID     string    `json:"room_id"`
	AuthorID   string    `json:"from"`
	AuthorName string    `json:"from_name,omitempty"`
	Text       string    `json:"body"`
	InReplyTo  string    `json:"pid,omitempty"`
	Action     string    `json:"action,omitempty"`
	CreatedAt  time.Time `json:"ts"`
}

// ContextSnapshot captures a message text and when it was seen.
type ContextSnapshot struct {
	Text       string
	CapturedAt time.Time
}
