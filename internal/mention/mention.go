// Package mention decides whether a message is addressed to the agent.
package mention

import (
	"strings"

	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Self identifies the agent for mention checks.
type Self struct {
	ID     string
	Handle string
}

// IsAddressedToAgent reports whether ev replies to one of self's messages,
// contains @handle, or (unless mentionsOnly) contains the bare handle.
// Handle comparisons ignore case.
func IsAddressedToAgent(ev models.Event, self Self, mentionsOnly bool) bool {
	if IsReplyToSelf(ev, self) {
		return true
	}
	text := ev.Body()
	if text == "" || self.Handle == "" {
		return false
	}
	if MentionsHandle(text, self.Handle) {
		return true
	}
	return !mentionsOnly && ContainsHandle(text, self.Handle)
}

// IsReplyToSelf reports whether ev replies to a message authored by self.
func IsReplyToSelf(ev models.Event, self Self) bool {
	if ev.ReplyTo == nil {
		return false
	}
	if self.ID != "" && ev.ReplyTo.AuthorID == self.ID {
		return true
	}
	return self.Handle != "" && strings.EqualFold(ev.ReplyTo.AuthorHandle, self.Handle)
}

// MentionsHandle reports whether text contains @handle, ignoring case.
func MentionsHandle(text, handle string) bool {
	if handle == "" {
		return false
	}
	return ContainsHandle(text, "@"+strings.TrimPrefix(handle, "@"))
}

// ContainsHandle reports whether text contains handle, ignoring case.
func ContainsHandle(text, handle string) bool {
	if handle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(handle))
}
