package models

import (
	"strings"
	"time"
)

// ChatKind distinguishes one-to-one rooms from group rooms.
type ChatKind string

const (
	ChatGroup   ChatKind = "group"
	ChatPrivate ChatKind = "private"
)

// ImagePlaceholder stands in for the text of an image-only message.
const ImagePlaceholder = "[image]"

// ReplyRef identifies the message an event replies to.
type ReplyRef struct {
	MessageID    string `json:"message_id"`
	AuthorID     string `json:"author_id,omitempty"`
	AuthorHandle string `json:"author_handle,omitempty"`
	IsBot        bool   `json:"is_bot,omitempty"`
}

// Event is an inbound message as delivered by a transport.
type Event struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	RoomID     string    `json:"room_id"`
	Text       string    `json:"text,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	HasImage   bool      `json:"has_image,omitempty"`
	IsBot      bool      `json:"is_bot,omitempty"`
	ReplyTo    *ReplyRef `json:"reply_to,omitempty"`
	SentAt     time.Time `json:"sent_at"`
	ChatKind   ChatKind  `json:"chat_kind"`
}

// Body returns the text, falling back to the caption.
func (e Event) Body() string {
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	return e.Caption
}

// ImageOnly reports whether the event carries an image and no text of
// its own.
func (e Event) ImageOnly() bool {
	if !e.HasImage {
		return false
	}
	body := strings.TrimSpace(e.Body())
	return body == "" || body == ImagePlaceholder
}

// IsPrivate reports whether the event arrived in a one-to-one room.
func (e Event) IsPrivate() bool {
	return e.ChatKind == ChatPrivate
}
