package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/eldtechnologies/aicq-agent/internal/metrics"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// EventAccepted is the response to a queued event.
type EventAccepted struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// PostEvent queues a pushed message event for the agent.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev.RoomID = strings.TrimSpace(ev.RoomID)
	ev.AuthorID = strings.TrimSpace(ev.AuthorID)
	if ev.RoomID == "" || ev.AuthorID == "" {
		h.Error(w, http.StatusBadRequest, "room_id and author_id are required")
		return
	}
	switch ev.ChatKind {
	case "":
		ev.ChatKind = models.ChatGroup
	case models.ChatGroup, models.ChatPrivate:
	default:
		h.Error(w, http.StatusBadRequest, "chat_kind must be group or private")
		return
	}
	if strings.TrimSpace(ev.Body()) == "" && !ev.HasImage {
		h.Error(w, http.StatusBadRequest, models.ErrMalformedMessage.Error())
		return
	}
	ev.AuthorName = sanitizeName(ev.AuthorName)

	metrics.EventsReceived.WithLabelValues(string(ev.ChatKind), "webhook").Inc()

	if !h.events.Submit(ev) {
		h.Error(w, http.StatusServiceUnavailable, "event queue full")
		return
	}
	h.JSON(w, http.StatusAccepted, EventAccepted{Status: "accepted", ID: ev.ID})
}
