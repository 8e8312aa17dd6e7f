package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/lo"

	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/logging"
	"chatrelay/pkg/middleware"
)

type RoomsHandler struct {
	rooms   *services.RoomService
	history services.IHubService
}

func NewRoomsHandler(rooms *services.RoomService, history services.IHubService) *RoomsHandler {
	return &RoomsHandler{rooms: rooms, history: history}
}

func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		middleware.LoggerFrom(r.Context()).ErrorContext(r.Context(), "rooms handler - list failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch rooms")
		return
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Room name is required")
		return
	}
	room, err := h.rooms.Create(r.Context(), req.Name)
	switch {
	case errors.Is(err, domain.ErrRoomExists):
		writeError(w, http.StatusConflict, "Room already exists")
	case err != nil:
		middleware.LoggerFrom(r.Context()).ErrorContext(r.Context(), "rooms handler - create failed",
			logging.Room(req.Name), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to create room")
	default:
		writeJSON(w, http.StatusCreated, room)
	}
}

// wireMessage is the REST shape of a persisted message, matching the
// fields the live "message" event carries.
type wireMessage struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Room      string `json:"room"`
	Type      string `json:"type"`
	FileURL   string `json:"fileUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
	Time      string `json:"time"`
}

func (h *RoomsHandler) History(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if room == "" {
		writeError(w, http.StatusBadRequest, "Room name is required")
		return
	}
	msgs, err := h.history.History(r.Context(), room)
	if err != nil {
		middleware.LoggerFrom(r.Context()).ErrorContext(r.Context(), "rooms handler - history failed",
			logging.Room(room), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	out := lo.Map(msgs, func(m domain.Message, _ int) wireMessage {
		return wireMessage{
			User:      m.Author,
			Text:      m.Body,
			Room:      m.Room,
			Type:      m.Kind,
			FileURL:   m.FileURL,
			CreatedAt: m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Time:      domain.Clock(m.CreatedAt),
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
