package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetRoomState reports the agent's interest state in one room.
func (h *Handler) GetRoomState(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.rooms.Status(chi.URLParam(r, "id")))
}
