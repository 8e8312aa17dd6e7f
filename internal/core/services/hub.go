package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
	"chatrelay/pkg/logging"
)

var tracer = otel.Tracer("hub-service")

// IHubService is the session lifecycle state machine. Each transition
// validates, mutates the registry, persists through the collaborators,
// and emits its broadcasts in a fixed order (private ack/welcome first,
// room notice second, presence third, history replay last) so every
// client observes a consistent sequence per transition.
type IHubService interface {
	// Connect records a freshly opened transport session.
	Connect(c contracts.Client) domain.ConnID
	// Join binds (username, room) and replays recent history to the joiner.
	Join(ctx context.Context, id domain.ConnID, p domain.JoinPayload) error
	// SendMessage persists then broadcasts; a store failure aborts the
	// broadcast entirely.
	SendMessage(ctx context.Context, id domain.ConnID, p domain.SendMessagePayload) error
	// Typing forwards the signal to room peers; no ack, nothing retained.
	Typing(ctx context.Context, id domain.ConnID, p domain.TypingPayload)
	// Leave unbinds and notifies the room. Idempotent.
	Leave(ctx context.Context, id domain.ConnID, p domain.LeavePayload) error
	// Disconnect runs leave semantics then destroys the registry entry.
	// It never fails visibly: there is no ack channel on transport close.
	Disconnect(ctx context.Context, id domain.ConnID)
	// History returns the recent window for a room, cache first.
	History(ctx context.Context, room string) ([]domain.Message, error)
}

type HubService struct {
	log          *slog.Logger
	registry     contracts.Registry
	cast         contracts.Broadcaster
	rooms        contracts.RoomCatalog
	store        contracts.MessageStore
	cache        contracts.HistoryCache // optional, nil disables caching
	storeTimeout time.Duration
	historyLimit int
}

func NewHubService(
	log *slog.Logger,
	registry contracts.Registry,
	cast contracts.Broadcaster,
	rooms contracts.RoomCatalog,
	store contracts.MessageStore,
	cache contracts.HistoryCache,
	storeTimeout time.Duration,
	historyLimit int,
) *HubService {
	return &HubService{
		log:          log,
		registry:     registry,
		cast:         cast,
		rooms:        rooms,
		store:        store,
		cache:        cache,
		storeTimeout: storeTimeout,
		historyLimit: historyLimit,
	}
}

func (h *HubService) Connect(c contracts.Client) domain.ConnID {
	id := h.registry.Register(c)
	h.log.Info("hub - connect - session registered", logging.Conn(id))
	return id
}

func (h *HubService) Join(ctx context.Context, id domain.ConnID, p domain.JoinPayload) error {
	ctx, span := tracer.Start(ctx, "HubService.Join", trace.WithAttributes(
		attribute.String("chat.conn_id", string(id)),
		attribute.String("chat.room", p.Room),
		attribute.String("chat.username", p.Username),
	))
	defer span.End()
	if p.Username == "" || p.Room == "" {
		return domain.ErrValidation
	}
	exists, err := h.roomExists(ctx, p.Room)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog check failed")
		h.log.ErrorContext(ctx, "hub - join - room lookup failed", logging.Room(p.Room), logging.Err(err))
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	if !exists {
		return domain.ErrRoomNotFound
	}
	// Atomic check-and-bind: uniqueness and insert in one critical
	// section, so concurrent joins for the same name serialize.
	binding, err := h.registry.Bind(id, p.Username, p.Room)
	if err != nil {
		span.RecordError(err)
		return err
	}
	h.log.InfoContext(ctx, "hub - join - bound",
		logging.Conn(id), logging.Room(p.Room), logging.User(p.Username))

	now := time.Now()
	h.cast.ToConnection(ctx, id, domain.EventMessage, domain.MessageEvent{
		User: domain.AdminUser,
		Text: fmt.Sprintf("Welcome to %s, %s!", p.Room, p.Username),
		Time: domain.Clock(now),
		Type: domain.KindText,
	})
	h.cast.ToRoomExcept(ctx, p.Room, id, domain.EventMessage, domain.MessageEvent{
		User: domain.AdminUser,
		Text: fmt.Sprintf("%s has joined!", p.Username),
		Time: domain.Clock(now),
		Type: domain.KindText,
	})
	h.broadcastPresence(ctx, p.Room)

	// History replay goes out strictly after the join broadcasts so the
	// joiner sees their welcome before any replayed message. A store
	// failure here degrades to an empty replay: the binding is live and
	// the room has already been notified, so the join stands.
	msgs, err := h.History(ctx, p.Room)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "hub - join - history replay failed", logging.Room(p.Room), logging.Err(err))
		return nil
	}
	for _, m := range msgs {
		h.cast.ToConnection(ctx, id, domain.EventMessage, m.EventOf(binding.Username))
	}
	span.SetStatus(codes.Ok, "joined")
	return nil
}

func (h *HubService) SendMessage(ctx context.Context, id domain.ConnID, p domain.SendMessagePayload) error {
	ctx, span := tracer.Start(ctx, "HubService.SendMessage", trace.WithAttributes(
		attribute.String("chat.conn_id", string(id)),
		attribute.String("chat.room", p.Room),
	))
	defer span.End()
	binding, ok := h.registry.Lookup(id)
	if !ok {
		return domain.ErrNotJoined
	}
	if p.Room == "" || (p.Message == "" && p.FileURL == "") {
		return domain.ErrValidation
	}
	kind := p.Type
	if kind == "" {
		kind = domain.KindText
	}
	body := p.Message
	if body == "" {
		if kind == domain.KindImage {
			body = "Sent an image"
		} else {
			body = "Sent a file"
		}
	}
	msg := domain.Message{
		ID:        uuid.New(),
		Room:      p.Room,
		Author:    binding.Username,
		Body:      body,
		Kind:      kind,
		FileURL:   p.FileURL,
		CreatedAt: time.Now(),
	}
	// Persist before broadcast: an unsaved message must never be seen live.
	if err := h.append(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		h.log.ErrorContext(ctx, "hub - send message - append failed",
			logging.Room(p.Room), logging.User(binding.Username), logging.Err(err))
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	if h.cache != nil {
		h.cache.Invalidate(ctx, p.Room)
	}
	h.cast.ToRoom(ctx, p.Room, domain.EventMessage, msg.EventOf(""))
	span.SetStatus(codes.Ok, "sent")
	return nil
}

func (h *HubService) Typing(ctx context.Context, id domain.ConnID, p domain.TypingPayload) {
	if p.Room == "" || p.Username == "" {
		return
	}
	h.cast.ToRoomExcept(ctx, p.Room, id, domain.EventTyping, p.Username)
}

func (h *HubService) Leave(ctx context.Context, id domain.ConnID, p domain.LeavePayload) error {
	ctx, span := tracer.Start(ctx, "HubService.Leave", trace.WithAttributes(
		attribute.String("chat.conn_id", string(id)),
	))
	defer span.End()
	binding, ok := h.registry.Unbind(id)
	if !ok {
		// Leaving without a binding still acknowledges success.
		return nil
	}
	h.notifyGone(ctx, binding, fmt.Sprintf("%s has left the room.", binding.Username))
	h.log.InfoContext(ctx, "hub - leave - unbound",
		logging.Conn(id), logging.Room(binding.Room), logging.User(binding.Username))
	return nil
}

func (h *HubService) Disconnect(ctx context.Context, id domain.ConnID) {
	ctx, span := tracer.Start(ctx, "HubService.Disconnect", trace.WithAttributes(
		attribute.String("chat.conn_id", string(id)),
	))
	defer span.End()
	if binding, ok := h.registry.Unbind(id); ok {
		h.notifyGone(ctx, binding, fmt.Sprintf("%s has disconnected.", binding.Username))
		h.log.InfoContext(ctx, "hub - disconnect - unbound",
			logging.Conn(id), logging.Room(binding.Room), logging.User(binding.Username))
	}
	h.registry.Remove(id)
}

func (h *HubService) History(ctx context.Context, room string) ([]domain.Message, error) {
	if h.cache != nil {
		if msgs, ok := h.cache.Get(ctx, room); ok {
			return msgs, nil
		}
	}
	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()
	msgs, err := h.store.Recent(storeCtx, room, h.historyLimit)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		h.cache.Set(ctx, room, msgs)
	}
	return msgs, nil
}

func (h *HubService) notifyGone(ctx context.Context, b domain.Binding, text string) {
	h.cast.ToRoom(ctx, b.Room, domain.EventMessage, domain.MessageEvent{
		User: domain.AdminUser,
		Text: text,
		Time: domain.Clock(time.Now()),
		Type: domain.KindText,
	})
	h.broadcastPresence(ctx, b.Room)
}

func (h *HubService) broadcastPresence(ctx context.Context, room string) {
	h.cast.ToRoom(ctx, room, domain.EventRoomUsers, domain.RoomUsersEvent{
		Room:  room,
		Users: h.registry.Snapshot(room),
	})
}

func (h *HubService) roomExists(ctx context.Context, room string) (bool, error) {
	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()
	return h.rooms.Exists(storeCtx, room)
}

func (h *HubService) append(ctx context.Context, msg domain.Message) error {
	storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()
	return h.store.Append(storeCtx, msg)
}
