package contracts

import (
	"context"

	"chatrelay/internal/core/domain"
)

// Registry owns every live connection and its claimed identity. All
// methods are safe for concurrent use; Bind performs the uniqueness
// check and the insert under a single lock hold so two racing joins for
// the same name serialize.
type Registry interface {
	// Register adds an unbound entry for a freshly opened transport session.
	Register(c Client) domain.ConnID
	// Bind claims (username, room) for the connection. Fails with
	// domain.ErrAlreadyBound if it already holds a binding and with
	// domain.ErrUsernameTaken if the room has a case-insensitive match.
	Bind(id domain.ConnID, username, room string) (domain.Binding, error)
	// Unbind drops the binding if present. Idempotent.
	Unbind(id domain.ConnID) (domain.Binding, bool)
	// Lookup returns the current binding, if any.
	Lookup(id domain.ConnID) (domain.Binding, bool)
	// MembersOf returns the room's live bindings in join order.
	MembersOf(room string) []domain.Binding
	// Snapshot recomputes the presence view for a room, join-ordered.
	Snapshot(room string) []domain.RoomUser
	// Remove deletes the registry entry entirely on transport close.
	Remove(id domain.ConnID)
}

// Broadcaster fans events out to room members. Delivery is best-effort:
// a connection mid-teardown simply misses the event. The recipient set
// is snapshotted under the registry lock and writes happen outside it.
type Broadcaster interface {
	ToRoom(ctx context.Context, room, event string, payload any)
	ToRoomExcept(ctx context.Context, room string, exclude domain.ConnID, event string, payload any)
	ToConnection(ctx context.Context, id domain.ConnID, event string, payload any)
}

// Client is the minimal surface the registry needs to deliver frames to
// one WebSocket connection.
type Client interface {
	ID() domain.ConnID
	Send(ctx context.Context, data []byte) error
	Close()
}
