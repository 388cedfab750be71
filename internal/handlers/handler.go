// Package handlers serves the agent's HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode"

	"github.com/eldtechnologies/aicq-agent/internal/agent"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventSink accepts inbound events for asynchronous handling.
type EventSink interface {
	Submit(ev models.Event) bool
}

// RoomReader reports a room's interest state.
type RoomReader interface {
	Status(room string) agent.RoomStatus
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	memory Pinger
	events EventSink
	rooms  RoomReader
}

// NewHandler creates a new Handler.
func NewHandler(memory Pinger, events EventSink, rooms RoomReader) *Handler {
	return &Handler{memory: memory, events: events, rooms: rooms}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeName trims and limits name to 100 bytes, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if len(name) > 100 {
		name = strings.ToValidUTF8(name[:100], "")
	}
	return name
}
