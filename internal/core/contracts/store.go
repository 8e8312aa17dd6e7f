package contracts

import (
	"context"
	"io"

	"chatrelay/internal/core/domain"
)

// RoomCatalog is the durable room collaborator.
type RoomCatalog interface {
	Exists(ctx context.Context, name string) (bool, error)
	// Create fails with domain.ErrRoomExists on a duplicate name.
	Create(ctx context.Context, name string) (domain.Room, error)
	// Ensure creates the room if absent and is a no-op otherwise.
	Ensure(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Room, error)
}

// MessageStore is the durable message collaborator.
type MessageStore interface {
	Append(ctx context.Context, msg domain.Message) error
	// Recent returns up to limit newest messages in chronological order.
	Recent(ctx context.Context, room string, limit int) ([]domain.Message, error)
}

// HistoryCache fronts MessageStore.Recent. It is an optimisation, never
// an authority: implementations swallow backend errors and report a miss.
type HistoryCache interface {
	Get(ctx context.Context, room string) ([]domain.Message, bool)
	Set(ctx context.Context, room string, msgs []domain.Message)
	Invalidate(ctx context.Context, room string)
}

// BlobStore persists uploaded files and classifies them for display.
type BlobStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (domain.Upload, error)
}
