package domain

import (
	"encoding/json"
	"time"
)

// Client-initiated events.
const (
	EventJoin        = "join"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventLeaveRoom   = "leaveRoom"
)

// Server-emitted events.
const (
	EventAck       = "ack"
	EventMessage   = "message"
	EventRoomUsers = "roomUsers"
)

// AdminUser authors the welcome/joined/left/disconnected notices.
const AdminUser = "Admin"

// Envelope frames every WebSocket message in both directions. ID links
// an ack back to the client event that triggered it; typing events and
// server broadcasts carry no ID.
type Envelope struct {
	Event   string          `json:"event"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload asks to bind this connection to (username, room).
type JoinPayload struct {
	Username string `json:"username" validate:"required"`
	Room     string `json:"room" validate:"required"`
}

// SendMessagePayload carries a text message or an attachment reference.
// Message may be empty when FileURL is set.
type SendMessagePayload struct {
	Message string `json:"message"`
	Room    string `json:"room" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL string `json:"fileUrl"`
}

// TypingPayload is forwarded to room peers without acknowledgment.
type TypingPayload struct {
	Room     string `json:"room" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// LeavePayload announces a voluntary exit from a room.
type LeavePayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// AckPayload reports transition outcome on the ack channel.
type AckPayload struct {
	Success bool      `json:"success,omitempty"`
	Error   *AckError `json:"error,omitempty"`
}

type AckError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AckOK is the success acknowledgment.
func AckOK() AckPayload {
	return AckPayload{Success: true}
}

// AckFailure classifies err for the client.
func AckFailure(err error) AckPayload {
	return AckPayload{Error: &AckError{Kind: KindOf(err), Message: err.Error()}}
}

// MessageEvent is the room-facing shape of a chat message or notice.
type MessageEvent struct {
	User          string `json:"user"`
	Text          string `json:"text"`
	Time          string `json:"time"`
	Type          string `json:"type"`
	FileURL       string `json:"fileUrl,omitempty"`
	IsCurrentUser bool   `json:"isCurrentUser,omitempty"`
}

// RoomUsersEvent is the presence snapshot pushed on every membership change.
type RoomUsersEvent struct {
	Room  string     `json:"room"`
	Users []RoomUser `json:"users"`
}

// Clock renders a timestamp the way clients display it.
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// EventOf converts a persisted message to its wire shape, tagging
// whether the recipient authored it.
func (m Message) EventOf(viewer string) MessageEvent {
	return MessageEvent{
		User:          m.Author,
		Text:          m.Body,
		Time:          Clock(m.CreatedAt),
		Type:          m.Kind,
		FileURL:       m.FileURL,
		IsCurrentUser: m.Author == viewer,
	}
}
