package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"chatrelay/internal/core/contracts"
	"chatrelay/internal/core/domain"
)

// Registry is the single in-process authority for live connections and
// their bindings. One mutex serializes every mutation so that two
// connections joining the same room concurrently cannot both pass the
// username check. Broadcasts snapshot the recipient set under the lock
// and deliver after releasing it, so network writes never run locked.
type Registry struct {
	mu    sync.Mutex
	conns map[domain.ConnID]*entry
	rooms map[string][]domain.ConnID // bound connections in join order
	log   *slog.Logger
}

type entry struct {
	client  contracts.Client
	binding *domain.Binding
}

func New(log *slog.Logger) *Registry {
	return &Registry{
		conns: make(map[domain.ConnID]*entry),
		rooms: make(map[string][]domain.ConnID),
		log:   log,
	}
}

func (r *Registry) Register(c contracts.Client) domain.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = &entry{client: c}
	return c.ID()
}

func (r *Registry) Bind(id domain.ConnID, username, room string) (domain.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return domain.Binding{}, domain.ErrUnknownConn
	}
	if e.binding != nil {
		return domain.Binding{}, domain.ErrAlreadyBound
	}
	for _, other := range r.rooms[room] {
		if b := r.conns[other].binding; b != nil && strings.EqualFold(b.Username, username) {
			return domain.Binding{}, domain.ErrUsernameTaken
		}
	}
	b := domain.Binding{Conn: id, Username: username, Room: room, JoinedAt: time.Now()}
	e.binding = &b
	r.rooms[room] = append(r.rooms[room], id)
	return b, nil
}

func (r *Registry) Unbind(id domain.ConnID) (domain.Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.binding == nil {
		return domain.Binding{}, false
	}
	b := *e.binding
	e.binding = nil
	r.dropFromRoom(b.Room, id)
	return b, true
}

func (r *Registry) Lookup(id domain.ConnID) (domain.Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.binding == nil {
		return domain.Binding{}, false
	}
	return *e.binding, true
}

func (r *Registry) MembersOf(room string) []domain.Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked(room)
}

// Snapshot recomputes the presence view for a room. Always derived from
// scratch so no stale entry can survive an unbind.
func (r *Registry) Snapshot(room string) []domain.RoomUser {
	return lo.Map(r.MembersOf(room), func(b domain.Binding, _ int) domain.RoomUser {
		return domain.RoomUser{Username: b.Username, ConnID: b.Conn}
	})
}

func (r *Registry) Remove(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return
	}
	if e.binding != nil {
		r.dropFromRoom(e.binding.Room, id)
	}
	delete(r.conns, id)
}

func (r *Registry) ToRoom(ctx context.Context, room, event string, payload any) {
	r.deliver(ctx, r.recipients(room, ""), event, payload)
}

func (r *Registry) ToRoomExcept(ctx context.Context, room string, exclude domain.ConnID, event string, payload any) {
	r.deliver(ctx, r.recipients(room, exclude), event, payload)
}

func (r *Registry) ToConnection(ctx context.Context, id domain.ConnID, event string, payload any) {
	r.mu.Lock()
	e, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.deliver(ctx, []contracts.Client{e.client}, event, payload)
}

func (r *Registry) membersLocked(room string) []domain.Binding {
	members := make([]domain.Binding, 0, len(r.rooms[room]))
	for _, id := range r.rooms[room] {
		if b := r.conns[id].binding; b != nil {
			members = append(members, *b)
		}
	}
	return members
}

// recipients snapshots the clients bound to room, minus exclude.
func (r *Registry) recipients(room string, exclude domain.ConnID) []contracts.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	targets := make([]contracts.Client, 0, len(r.rooms[room]))
	for _, id := range r.rooms[room] {
		if id == exclude {
			continue
		}
		targets = append(targets, r.conns[id].client)
	}
	return targets
}

func (r *Registry) dropFromRoom(room string, id domain.ConnID) {
	ids := r.rooms[room]
	for i, other := range ids {
		if other == id {
			r.rooms[room] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
}

// deliver writes one encoded frame to every target. A send failure is a
// connection mid-teardown; it loses this event only.
func (r *Registry) deliver(ctx context.Context, targets []contracts.Client, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		r.log.Error("registry - deliver - payload encode failed", "event", event, "err", err)
		return
	}
	frame, err := json.Marshal(domain.Envelope{Event: event, Payload: raw})
	if err != nil {
		r.log.Error("registry - deliver - frame encode failed", "event", event, "err", err)
		return
	}
	for _, c := range targets {
		if err := c.Send(ctx, frame); err != nil {
			r.log.Debug("registry - deliver - send dropped", "event", event, "conn_id", string(c.ID()))
		}
	}
}
