package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/registry"
	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
)

type memStore struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (s *memStore) Append(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *memStore) Recent(_ context.Context, room string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.msgs {
		if m.Room == room {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type wsSession struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, srv *httptest.Server) *wsSession {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &wsSession{t: t, conn: conn}
}

func (s *wsSession) send(event string, id int64, payload any) {
	s.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(s.t, err)
	frame, err := json.Marshal(domain.Envelope{Event: event, ID: id, Payload: raw})
	require.NoError(s.t, err)
	require.NoError(s.t, s.conn.WriteMessage(websocket.TextMessage, frame))
}

func (s *wsSession) read() domain.Envelope {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := s.conn.ReadMessage()
	require.NoError(s.t, err)
	var env domain.Envelope
	require.NoError(s.t, json.Unmarshal(data, &env))
	return env
}

func (s *wsSession) readAck(wantID int64) domain.AckPayload {
	s.t.Helper()
	env := s.read()
	require.Equal(s.t, domain.EventAck, env.Event)
	require.Equal(s.t, wantID, env.ID)
	var ack domain.AckPayload
	require.NoError(s.t, json.Unmarshal(env.Payload, &ack))
	return ack
}

func newWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := registry.New(slog.Default())
	catalog := newMemCatalog()
	require.NoError(t, catalog.Ensure(context.Background(), "general"))
	hub := services.NewHubService(slog.Default(), reg, reg, catalog, &memStore{}, nil, time.Second, 100)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(hub).Handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func Test_WS_JoinSendLeave(t *testing.T) {
	req := require.New(t)
	srv := newWSServer(t)
	sess := dialWS(t, srv)

	sess.send(domain.EventJoin, 1, domain.JoinPayload{Username: "Alice", Room: "general"})

	env := sess.read()
	req.Equal(domain.EventMessage, env.Event)
	var welcome domain.MessageEvent
	req.NoError(json.Unmarshal(env.Payload, &welcome))
	req.Equal(domain.AdminUser, welcome.User)
	req.Contains(welcome.Text, "Alice")

	env = sess.read()
	req.Equal(domain.EventRoomUsers, env.Event)
	var presence domain.RoomUsersEvent
	req.NoError(json.Unmarshal(env.Payload, &presence))
	req.Equal("general", presence.Room)
	req.Len(presence.Users, 1)

	// Ack lands after the transition's own broadcasts.
	ack := sess.readAck(1)
	req.True(ack.Success)
	req.Nil(ack.Error)

	sess.send(domain.EventSendMessage, 2, domain.SendMessagePayload{Room: "general", Message: "hi"})
	env = sess.read()
	req.Equal(domain.EventMessage, env.Event)
	var msg domain.MessageEvent
	req.NoError(json.Unmarshal(env.Payload, &msg))
	req.Equal("Alice", msg.User)
	req.Equal("hi", msg.Text)
	req.True(sess.readAck(2).Success)

	sess.send(domain.EventLeaveRoom, 3, domain.LeavePayload{Username: "Alice", Room: "general"})
	req.True(sess.readAck(3).Success)
}

func Test_WS_JoinUnknownRoom(t *testing.T) {
	req := require.New(t)
	srv := newWSServer(t)
	sess := dialWS(t, srv)

	sess.send(domain.EventJoin, 1, domain.JoinPayload{Username: "Alice", Room: "nowhere"})
	ack := sess.readAck(1)
	req.False(ack.Success)
	req.NotNil(ack.Error)
	req.Equal(domain.KindRoomNotFound, ack.Error.Kind)
}

func Test_WS_MalformedPayloadAcksValidation(t *testing.T) {
	req := require.New(t)
	srv := newWSServer(t)
	sess := dialWS(t, srv)

	sess.send(domain.EventJoin, 1, map[string]string{"username": "Alice"})
	ack := sess.readAck(1)
	req.False(ack.Success)
	req.Equal(domain.KindValidation, ack.Error.Kind)

	sess.send("bogusEvent", 2, map[string]string{})
	ack = sess.readAck(2)
	req.False(ack.Success)
	req.Equal(domain.KindValidation, ack.Error.Kind)
}

func Test_WS_NoAckWithoutID(t *testing.T) {
	req := require.New(t)
	srv := newWSServer(t)
	sess := dialWS(t, srv)

	// A failing transition sent without an id stays silent; the next
	// acked event is the only traffic we see back.
	sess.send(domain.EventJoin, 0, domain.JoinPayload{Username: "Alice", Room: "nowhere"})
	sess.send(domain.EventJoin, 7, domain.JoinPayload{Username: "Alice", Room: "general"})

	env := sess.read()
	req.Equal(domain.EventMessage, env.Event)
	env = sess.read()
	req.Equal(domain.EventRoomUsers, env.Event)
	req.True(sess.readAck(7).Success)
}

func Test_WS_DisconnectNotifiesPeers(t *testing.T) {
	req := require.New(t)
	srv := newWSServer(t)

	alice := dialWS(t, srv)
	alice.send(domain.EventJoin, 1, domain.JoinPayload{Username: "Alice", Room: "general"})
	alice.read() // welcome
	alice.read() // presence
	alice.readAck(1)

	bob := dialWS(t, srv)
	bob.send(domain.EventJoin, 1, domain.JoinPayload{Username: "Bob", Room: "general"})
	bob.read()
	bob.read()
	bob.readAck(1)

	// Alice sees Bob arrive.
	env := alice.read()
	req.Equal(domain.EventMessage, env.Event)
	env = alice.read()
	req.Equal(domain.EventRoomUsers, env.Event)

	bob.conn.Close()

	env = alice.read()
	req.Equal(domain.EventMessage, env.Event)
	var notice domain.MessageEvent
	req.NoError(json.Unmarshal(env.Payload, &notice))
	req.Equal("Bob has disconnected.", notice.Text)

	env = alice.read()
	req.Equal(domain.EventRoomUsers, env.Event)
	var presence domain.RoomUsersEvent
	req.NoError(json.Unmarshal(env.Payload, &presence))
	req.Len(presence.Users, 1)
	req.Equal("Alice", presence.Users[0].Username)
}
