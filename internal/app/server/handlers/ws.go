package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatrelay/internal/app/server/ws"
	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/pkg/logging"
	"chatrelay/pkg/middleware"
)

// WSHandler upgrades the transport session and pumps client events into
// the hub. Payloads are validated here, before the state machine sees
// them; the hub re-checks its own invariants regardless.
type WSHandler struct {
	hub      services.IHubService
	validate *validator.Validate
}

func NewWSHandler(hub services.IHubService) *WSHandler {
	return &WSHandler{
		hub:      hub,
		validate: validator.New(),
	}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := middleware.LoggerFrom(r.Context())
	span := trace.SpanFromContext(r.Context())

	// The session outlives the HTTP request context.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", logging.Err(err))
		return
	}

	sock := ws.NewWebSocket(ctx, conn)
	client := ws.NewClient(ctx, sock)
	id := h.hub.Connect(client)
	span.SetAttributes(attribute.String("chat.conn_id", string(id)))
	log.InfoContext(r.Context(), "ws handler - connection established", logging.Conn(id))

	defer client.Close()
	defer h.hub.Disconnect(sessionCtx, id)

	conn.SetCloseHandler(func(code int, text string) error {
		cancel()
		return nil
	})

	// Sequential dispatch: one connection's events are handled in the
	// order they arrive, which is what makes per-transition broadcast
	// ordering observable to the client.
	sock.ReadLoop(func(data []byte) {
		h.dispatch(ctx, log, client, id, data)
	})
	log.InfoContext(sessionCtx, "ws handler - connection closed", logging.Conn(id))
}

func (h *WSHandler) dispatch(ctx context.Context, log *slog.Logger, client *ws.RuntimeClient, id domain.ConnID, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn("ws handler - dispatch - bad frame", logging.Conn(id), logging.Err(err))
		return
	}
	switch env.Event {
	case domain.EventJoin:
		var p domain.JoinPayload
		if !h.decode(ctx, client, env, &p) {
			return
		}
		h.ack(ctx, client, env.ID, h.hub.Join(ctx, id, p))
	case domain.EventSendMessage:
		var p domain.SendMessagePayload
		if !h.decode(ctx, client, env, &p) {
			return
		}
		h.ack(ctx, client, env.ID, h.hub.SendMessage(ctx, id, p))
	case domain.EventTyping:
		// Fire-and-forget: no ack even on a malformed payload.
		var p domain.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if err := h.validate.Struct(p); err != nil {
			return
		}
		h.hub.Typing(ctx, id, p)
	case domain.EventLeaveRoom:
		var p domain.LeavePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.ack(ctx, client, env.ID, domain.ErrValidation)
			return
		}
		h.ack(ctx, client, env.ID, h.hub.Leave(ctx, id, p))
	default:
		log.Warn("ws handler - dispatch - unknown event", logging.Conn(id), logging.Event(env.Event))
		h.ack(ctx, client, env.ID, domain.ErrValidation)
	}
}

// decode unmarshals and validates the payload, acking a validation
// failure itself. Returns false when dispatch should stop.
func (h *WSHandler) decode(ctx context.Context, client *ws.RuntimeClient, env domain.Envelope, p any) bool {
	if err := json.Unmarshal(env.Payload, p); err != nil {
		h.ack(ctx, client, env.ID, domain.ErrValidation)
		return false
	}
	if err := h.validate.Struct(p); err != nil {
		h.ack(ctx, client, env.ID, domain.ErrValidation)
		return false
	}
	return true
}

// ack writes the transition result back on the requesting connection.
// Events sent without an id get no acknowledgment.
func (h *WSHandler) ack(ctx context.Context, client *ws.RuntimeClient, id int64, err error) {
	if id == 0 {
		return
	}
	payload := domain.AckOK()
	if err != nil {
		payload = domain.AckFailure(err)
	}
	raw, mErr := json.Marshal(payload)
	if mErr != nil {
		return
	}
	frame, mErr := json.Marshal(domain.Envelope{Event: domain.EventAck, ID: id, Payload: raw})
	if mErr != nil {
		return
	}
	_ = client.Send(ctx, frame)
}
