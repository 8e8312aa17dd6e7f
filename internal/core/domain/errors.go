package domain

import "errors"

var (
	ErrValidation    = errors.New("missing or empty required field")
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrRoomExists    = errors.New("room already exists")
	ErrUsernameTaken = errors.New("username is already taken in this room")
	ErrAlreadyBound  = errors.New("connection already joined a room")
	ErrNotJoined     = errors.New("connection has not joined a room")
	ErrUnknownConn   = errors.New("unknown connection")
	ErrStore         = errors.New("store operation failed")
)

// ErrorKind is the machine-readable classification carried in acks.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindRoomNotFound  ErrorKind = "room_not_found"
	KindUsernameTaken ErrorKind = "username_taken"
	KindAlreadyBound  ErrorKind = "already_bound"
	KindNotJoined     ErrorKind = "not_joined"
	KindStoreError    ErrorKind = "store_error"
)

// KindOf maps an error to its ack classification. Anything not produced
// by the state machine itself is reported as a store failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRoomNotFound):
		return KindRoomNotFound
	case errors.Is(err, ErrUsernameTaken):
		return KindUsernameTaken
	case errors.Is(err, ErrAlreadyBound):
		return KindAlreadyBound
	case errors.Is(err, ErrNotJoined):
		return KindNotJoined
	default:
		return KindStoreError
	}
}
