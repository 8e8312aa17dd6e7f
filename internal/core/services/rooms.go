package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
	"chatrelay/pkg/logging"
)

// DefaultRooms are seeded at startup so a fresh deployment is usable
// without any REST calls.
var DefaultRooms = []string{"general", "coding", "gaming", "movies", "music"}

type RoomService struct {
	log          *slog.Logger
	catalog      contracts.RoomCatalog
	storeTimeout time.Duration
}

func NewRoomService(log *slog.Logger, catalog contracts.RoomCatalog, storeTimeout time.Duration) *RoomService {
	return &RoomService{log: log, catalog: catalog, storeTimeout: storeTimeout}
}

// SeedDefaults creates the default rooms if absent. Safe to run on
// every boot.
func (s *RoomService) SeedDefaults(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RoomService.SeedDefaults")
	defer span.End()
	for _, name := range DefaultRooms {
		storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		err := s.catalog.Ensure(storeCtx, name)
		cancel()
		if err != nil {
			span.RecordError(err)
			s.log.ErrorContext(ctx, "rooms - seed defaults - ensure failed", logging.Room(name), logging.Err(err))
			return err
		}
	}
	s.log.InfoContext(ctx, "rooms - seed defaults - done", "count", len(DefaultRooms))
	return nil
}

func (s *RoomService) List(ctx context.Context) ([]domain.Room, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.catalog.List(storeCtx)
}

func (s *RoomService) Create(ctx context.Context, name string) (domain.Room, error) {
	ctx, span := tracer.Start(ctx, "RoomService.Create", trace.WithAttributes(
		attribute.String("chat.room", name),
	))
	defer span.End()
	if name == "" {
		return domain.Room{}, domain.ErrValidation
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	room, err := s.catalog.Create(storeCtx, name)
	if err != nil {
		span.RecordError(err)
		return domain.Room{}, err
	}
	s.log.InfoContext(ctx, "rooms - create - success", logging.Room(name))
	return room, nil
}
