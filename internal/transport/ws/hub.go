package ws

import (
	"log/slog"
	"sync"

	"github.com/cwrk-planet/session-hub/internal/domain"
)

// Conn is one live socket as seen by the fan-out side.
type Conn interface {
	ID() domain.ConnID
	// Enqueue hands an encoded frame to the connection's writer without
	// blocking. It reports false when the connection cannot keep up.
	Enqueue(frame []byte) bool
	Close() error
}

// Hub keeps live sockets and the room groups they are subscribed to, and
// fans encoded events out to them. It implements session.Transport.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]Conn
	rooms map[string]map[domain.ConnID]struct{} // room -> set of connections

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns: make(map[domain.ConnID]Conn),
		rooms: make(map[string]map[domain.ConnID]struct{}),
		log:   log.With(slog.String("component", "ws_hub")),
	}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Remove forgets the connection and drops it from every room group.
func (h *Hub) Remove(id domain.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, id)
	for room, members := range h.rooms {
		if _, ok := members[id]; !ok {
			continue
		}
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Subscribe is ignored for connections that are already gone.
func (h *Hub) Subscribe(id domain.ConnID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[id]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		h.rooms[room] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) Unsubscribe(id domain.ConnID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) SendTo(id domain.ConnID, ev domain.Outbound) {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.fanOut(ev, []Conn{c})
}

func (h *Hub) SendRoom(room string, ev domain.Outbound, exclude domain.ConnID) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if id == exclude {
			continue
		}
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	h.fanOut(ev, targets)
}

func (h *Hub) SendAll(ev domain.Outbound) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.fanOut(ev, targets)
}

// CloseAll closes every live socket; their read loops then run the normal
// disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		_ = c.Close()
	}
	h.log.Info("closed all connections", slog.Int("count", len(targets)))
}

// fanOut encodes once and enqueues to every target. A connection whose buffer
// is full is closed rather than allowed to stall everyone else.
func (h *Hub) fanOut(ev domain.Outbound, targets []Conn) {
	if len(targets) == 0 {
		return
	}
	frame, err := encodeOutbound(ev)
	if err != nil {
		h.log.Error("drop outbound event", slog.String("event", ev.Name), slog.Any("err", err))
		return
	}
	for _, c := range targets {
		if c.Enqueue(frame) {
			continue
		}
		h.log.Warn("send buffer full, closing connection",
			slog.String("conn_id", string(c.ID())),
			slog.String("event", ev.Name))
		_ = c.Close()
	}
}
