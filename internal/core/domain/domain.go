package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConnID identifies a single live transport session. It is opaque to
// clients and never reused.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Binding is the (username, room) pair claimed by a connection after a
// successful join. It is immutable until the connection leaves or drops.
type Binding struct {
	Conn     ConnID
	Username string
	Room     string
	JoinedAt time.Time
}

// RoomUser is one entry of a room presence snapshot.
type RoomUser struct {
	Username string `json:"username"`
	ConnID   ConnID `json:"id"`
}

// Message kinds, matching the wire "type" field.
const (
	KindText  = "text"
	KindImage = "image"
	KindFile  = "file"
)

// Message is a durable chat entry. Body may be synthesized ("Sent an
// image") when the client only supplied an attachment.
type Message struct {
	ID        uuid.UUID
	Room      string
	Author    string
	Body      string
	Kind      string
	FileURL   string
	CreatedAt time.Time
}

// Room is a named channel. Membership is derived from live bindings,
// never stored on the room itself.
type Room struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upload is the result of storing a client-provided blob.
type Upload struct {
	URL  string `json:"fileUrl"`
	Kind string `json:"fileType"`
}
